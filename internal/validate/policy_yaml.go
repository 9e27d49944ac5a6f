package validate

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk YAML shape. Sizes are plain byte counts; zero or
// missing values fall back to the current defaults so a partial override file
// is valid.
type policyFile struct {
	MaxFiles             int      `yaml:"maxFiles"`
	MaxFileSizeBytes     int64    `yaml:"maxFileSizeBytes"`
	AllowedExtensions    []string `yaml:"allowedExtensions"`
	AcceptedMIMEPrefixes []string `yaml:"acceptedMimePrefixes"`
}

// ParsePolicyFromReader reads a YAML policy override and merges it over the
// defaults.
func ParsePolicyFromReader(r io.Reader) (Policy, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return Policy{}, fmt.Errorf("parse policy yaml: %w", err)
	}

	p := DefaultPolicy()
	if pf.MaxFiles > 0 {
		p.MaxFiles = pf.MaxFiles
	}
	if pf.MaxFileSizeBytes > 0 {
		p.MaxFileSize = pf.MaxFileSizeBytes
	}
	if len(pf.AllowedExtensions) > 0 {
		p.AllowedExtensions = pf.AllowedExtensions
	}
	if len(pf.AcceptedMIMEPrefixes) > 0 {
		p.AcceptedMIMEPrefixes = pf.AcceptedMIMEPrefixes
	}
	return p, nil
}

// LoadPolicyFile loads a YAML policy file from disk. A missing file is not an
// error; the defaults are returned unchanged.
func LoadPolicyFile(path string) (Policy, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return Policy{}, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()
	return ParsePolicyFromReader(f)
}
