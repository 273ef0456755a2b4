package dmarc

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/firefart/dmarcviewer/internal/helper"
)

const xsTag = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="http://dmarc.org/dmarc-xml/0.1">`

func readGZ(content []byte) ([]byte, error) {
	buf := bytes.NewBuffer(content)
	gz, err := gzip.NewReader(buf)
	if err != nil {
		return nil, fmt.Errorf("could not gzip read: %w", err)
	}
	defer gz.Close()

	xmlContent, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("could not read: %w", err)
	}
	return xmlContent, nil
}

func readZIP(content []byte) ([]byte, string, error) {
	buf := bytes.NewReader(content)
	r, err := zip.NewReader(buf, int64(len(content)))
	if err != nil {
		return nil, "", fmt.Errorf("could not open zip: %w", err)
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		x, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("could not open file %s inside zip: %w", f.Name, err)
		}
		xmlContent, err := io.ReadAll(x)
		x.Close()
		if err != nil {
			return nil, "", fmt.Errorf("could not read file %s inside zip: %w", f.Name, err)
		}
		// only use first file in the zip file
		return xmlContent, f.FileInfo().Name(), nil
	}
	return nil, "", errors.New("no valid file found within zip archive")
}

// ReadFile unpacks a report attachment and returns the name and content of
// the contained XML document. The format is taken from the extension and
// falls back to sniffing the content.
func ReadFile(filename string, content []byte) (string, []byte, error) {
	var xmlContent []byte
	var xmlFilename string
	var err error

	typ := helper.ArchiveNone
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xml":
	case ".gz":
		typ = helper.ArchiveGzip
	case ".zip":
		typ = helper.ArchiveZip
	default:
		typ = helper.DetectArchive(content)
		if typ == helper.ArchiveNone && !helper.LooksLikeXML(content) {
			return "", nil, fmt.Errorf("unknown extension %s", ext)
		}
	}

	switch typ {
	case helper.ArchiveGzip:
		xmlContent, err = readGZ(content)
		if err != nil {
			return "", nil, err
		}
		xmlFilename = strings.TrimSuffix(filename, filepath.Ext(filename))
	case helper.ArchiveZip:
		xmlContent, xmlFilename, err = readZIP(content)
		if err != nil {
			return "", nil, err
		}
	default:
		xmlContent = content
		xmlFilename = filename
	}

	// some xmls contain invalid XML by adding an unclosed xs tag
	xmlContent = bytes.ReplaceAll(xmlContent, []byte(xsTag), []byte(""))

	return xmlFilename, xmlContent, nil
}

// ReportFilename is the parsed form of a report file name
// receiver "!" policy-domain "!" begin-timestamp "!" end-timestamp
// [ "!" unique-id ] "." extension, see RFC 7489 section 7.2.1.1.
type ReportFilename struct {
	Receiver     string
	PolicyDomain string
	Begin        string
	End          string
	UniqueID     string
}

func ParseReportFilename(filename string) (ReportFilename, error) {
	filename = filepath.Base(filename)
	// receivers are domains so the extension starts after the last part
	if i := strings.LastIndex(filename, "!"); i >= 0 {
		if j := strings.Index(filename[i:], "."); j >= 0 {
			filename = filename[:i+j]
		}
	}
	parts := strings.Split(filename, "!")
	if len(parts) < 4 {
		return ReportFilename{}, fmt.Errorf("filename %q does not match RFC", filename)
	}
	ret := ReportFilename{
		Receiver:     parts[0],
		PolicyDomain: parts[1],
		Begin:        parts[2],
		End:          parts[3],
	}
	if len(parts) > 4 {
		ret.UniqueID = parts[4]
	}
	return ret, nil
}
