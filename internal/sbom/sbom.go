// Package sbom extracts package references from SBOM documents.
// CycloneDX and SPDX JSON are supported; both carry package URLs, which
// are the only fields the trust pipeline needs.
package sbom

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	packageurl "github.com/package-url/packageurl-go"

	"github.com/git-pkgs/slopguard/internal/core"
)

const (
	maxNameLen    = 200
	maxVersionLen = 50
)

var (
	nameAllowed    = regexp.MustCompile(`[^A-Za-z0-9._/@-]`)
	versionAllowed = regexp.MustCompile(`[^A-Za-z0-9.+-]`)
)

type cycloneDX struct {
	BOMFormat  string `json:"bomFormat"`
	Components []struct {
		PURL string `json:"purl"`
	} `json:"components"`
}

type spdx struct {
	SPDXVersion string `json:"spdxVersion"`
	Packages    []struct {
		ExternalRefs []struct {
			ReferenceType    string `json:"referenceType"`
			ReferenceLocator string `json:"referenceLocator"`
		} `json:"externalRefs"`
	} `json:"packages"`
}

// ParseFile reads an SBOM file and returns deduplicated, sanitized
// package references for supported ecosystems.
func ParseFile(path string) ([]core.PackageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading SBOM: %w", err)
	}
	return Parse(data)
}

// Parse detects the SBOM format and extracts package references.
func Parse(data []byte) ([]core.PackageRef, error) {
	var purls []string

	var cdx cycloneDX
	if err := json.Unmarshal(data, &cdx); err == nil && cdx.BOMFormat == "CycloneDX" {
		for _, c := range cdx.Components {
			if c.PURL != "" {
				purls = append(purls, c.PURL)
			}
		}
		return fromPURLs(purls), nil
	}

	var doc spdx
	if err := json.Unmarshal(data, &doc); err == nil && doc.SPDXVersion != "" {
		for _, p := range doc.Packages {
			for _, ref := range p.ExternalRefs {
				if strings.EqualFold(ref.ReferenceType, "purl") && ref.ReferenceLocator != "" {
					purls = append(purls, ref.ReferenceLocator)
				}
			}
		}
		return fromPURLs(purls), nil
	}

	return nil, fmt.Errorf("unrecognized SBOM format: expected CycloneDX or SPDX JSON")
}

// fromPURLs converts package URLs into refs, dropping unsupported
// ecosystems, unparseable entries, and duplicates.
func fromPURLs(purls []string) []core.PackageRef {
	seen := make(map[core.PackageRef]bool)
	var refs []core.PackageRef

	for _, raw := range purls {
		p, err := packageurl.FromString(raw)
		if err != nil {
			continue
		}

		eco := core.Normalize(p.Type)
		if eco == "" {
			continue
		}

		name := p.Name
		if p.Namespace != "" {
			name = p.Namespace + "/" + p.Name
		}

		ref := core.PackageRef{
			Ecosystem: eco,
			Name:      SanitizeName(name),
			Version:   SanitizeVersion(p.Version),
		}
		if ref.Name == "" || ref.Version == "" {
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

// SanitizeName strips disallowed characters and bounds length.
func SanitizeName(name string) string {
	name = nameAllowed.ReplaceAllString(name, "")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// SanitizeVersion strips disallowed characters and bounds length.
func SanitizeVersion(version string) string {
	version = versionAllowed.ReplaceAllString(version, "")
	if len(version) > maxVersionLen {
		version = version[:maxVersionLen]
	}
	return version
}
