// Package ooxml reads the package structure of OOXML documents (DOCX, XLSX,
// PPTX) without interpreting their content.
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Relationship type URIs.
const (
	NSRelDoc = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	RelOfficeDocument = NSRelDoc + "/officeDocument"
	RelSlide          = NSRelDoc + "/slide"
	RelWorksheet      = NSRelDoc + "/worksheet"
	RelImage          = NSRelDoc + "/image"
)

// ErrNotPackage is returned for archives without a main document part.
var ErrNotPackage = errors.New("not an OOXML package")

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// Summary describes a package.
type Summary struct {
	// MainPart is the zip path of the main document part, e.g.
	// "word/document.xml".
	MainPart    string
	ContentType string
	Parts       int
	Slides      int
	Sheets      int
	Images      int
}

// Inspect opens data as a zip archive and follows the package
// relationships to the main document part.
func Inspect(data []byte) (*Summary, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPackage, err)
	}

	rootRels, err := ParseRelationships(zr, "_rels/.rels")
	if err != nil {
		return nil, err
	}
	var main string
	for _, rel := range rootRels {
		if rel.Type == RelOfficeDocument {
			main = ResolveTarget("", rel.Target)
			break
		}
	}
	if main == "" {
		return nil, ErrNotPackage
	}

	s := &Summary{MainPart: main, Parts: len(zr.File)}

	mainRels, err := ParseRelationships(zr, RelsPathFor(main))
	if err != nil {
		return nil, err
	}
	for _, rel := range mainRels {
		switch rel.Type {
		case RelSlide:
			s.Slides++
		case RelWorksheet:
			s.Sheets++
		case RelImage:
			s.Images++
		}
	}

	if raw, err := ReadFile(zr, "[Content_Types].xml"); err == nil {
		var ct contentTypes
		if err := xml.Unmarshal(raw, &ct); err == nil {
			for _, o := range ct.Overrides {
				if strings.TrimPrefix(o.PartName, "/") == main {
					s.ContentType = o.ContentType
					break
				}
			}
		}
	}
	return s, nil
}

// ParseRelationships reads a .rels part keyed by relationship id. A missing
// part yields an empty map.
func ParseRelationships(zr *zip.Reader, relsPath string) (map[string]Relationship, error) {
	raw, err := ReadFile(zr, relsPath)
	if errors.Is(err, errPartNotFound) {
		return make(map[string]Relationship), nil
	}
	if err != nil {
		return nil, err
	}

	var rels relationships
	if err := xml.Unmarshal(raw, &rels); err != nil {
		return nil, fmt.Errorf("decode relationships %s: %w", relsPath, err)
	}
	result := make(map[string]Relationship, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		result[rel.ID] = rel
	}
	return result, nil
}

var errPartNotFound = errors.New("part not found")

// ReadFile reads a part from the archive.
func ReadFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("%w: %s", errPartNotFound, name)
}

// RelsPathFor returns the .rels path for a part.
func RelsPathFor(partPath string) string {
	dir := path.Dir(partPath)
	base := path.Base(partPath)
	if dir == "." {
		return "_rels/" + base + ".rels"
	}
	return dir + "/_rels/" + base + ".rels"
}

// ResolveTarget resolves a relationship target against the part that owns
// the relationship. An empty basePath means the package root.
func ResolveTarget(basePath, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(basePath), target)
}
