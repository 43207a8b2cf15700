package drm

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// encryptionPath is the standard location of the encryption descriptor
// inside an EPUB archive.
const encryptionPath = "META-INF/encryption.xml"

// Protection scheme labels, recorded alongside processing outcomes.
const (
	TypeNone        = "none"
	TypeEntryCipher = "entry-cipher"
)

// IsProtected reports whether the container carries an encryption
// descriptor. Unreadable input counts as unprotected; Rewrite will surface
// the format error.
func IsProtected(data []byte) bool {
	in, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	return findEntry(in, encryptionPath) != nil
}

// xmlEncryption models META-INF/encryption.xml, which lists the archive
// entries that are encrypted via CipherReference URIs.
type xmlEncryption struct {
	XMLName       xml.Name           `xml:"encryption"`
	EncryptedData []xmlEncryptedData `xml:"EncryptedData"`
}

type xmlEncryptedData struct {
	CipherData xmlCipherData `xml:"CipherData"`
}

type xmlCipherData struct {
	CipherReference xmlCipherReference `xml:"CipherReference"`
}

type xmlCipherReference struct {
	URI string `xml:"URI,attr"`
}

// parseEncryptionXML extracts the encrypted entry names from the descriptor.
func parseEncryptionXML(data []byte) (map[string]bool, error) {
	var enc xmlEncryption
	if err := xml.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrFormat, encryptionPath, err)
	}
	names := make(map[string]bool, len(enc.EncryptedData))
	for _, ed := range enc.EncryptedData {
		if uri := ed.CipherData.CipherReference.URI; uri != "" {
			names[uri] = true
		}
	}
	return names, nil
}

// Rewrite removes the DRM protection from an EPUB container. It parses the
// encryption descriptor, decrypts every listed entry with the key derived
// from licenseKey, and rebuilds the archive with all entries stored
// uncompressed and the descriptor itself dropped.
//
// A container without an encryption descriptor is returned unchanged: the
// source treats a missing descriptor as "not DRM-protected" rather than an
// error. Any per-entry decryption failure aborts the whole rewrite; partial
// output is never returned.
func Rewrite(encrypted []byte, licenseKey string) ([]byte, error) {
	in, err := zip.NewReader(bytes.NewReader(encrypted), int64(len(encrypted)))
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrFormat, err)
	}

	descriptor := findEntry(in, encryptionPath)
	if descriptor == nil {
		// No DRM. Pass the container through untouched.
		return encrypted, nil
	}
	descData, err := readEntry(descriptor)
	if err != nil {
		return nil, err
	}
	encryptedNames, err := parseEncryptionXML(descData)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(licenseKey)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	out := zip.NewWriter(&buf)
	for _, f := range in.File {
		if f.Name == encryptionPath {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		if encryptedNames[f.Name] {
			content, err = DecryptEntry(content, key)
			if err != nil {
				return nil, &EntryError{Entry: f.Name, Err: err}
			}
		}
		// Store mode keeps downstream consumers compatible and skips
		// recompression cost. Entry metadata is carried over.
		w, err := out.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Store,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("write entry %s: %w", f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", f.Name, err)
		}
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// findEntry returns the archive entry with the given name, or nil.
func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// readEntry reads the full contents of one archive entry.
func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %s: %v", ErrFormat, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read entry %s: %v", ErrFormat, f.Name, err)
	}
	return data, nil
}
