package drm

import (
	"archive/zip"
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func readZipMap(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open rebuilt zip: %v", err)
	}
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		content, err := readEntry(f)
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = content
	}
	return out
}

func encryptionXML(names ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container" xmlns:enc="http://www.w3.org/2001/04/xmlenc#">`)
	for _, n := range names {
		fmt.Fprintf(&buf, `<enc:EncryptedData><enc:CipherData><enc:CipherReference URI=%q/></enc:CipherData></enc:EncryptedData>`, n)
	}
	buf.WriteString(`</encryption>`)
	return buf.Bytes()
}

func licenseFor(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func TestRewrite_NoEncryptionDescriptorPassesThrough(t *testing.T) {
	src := buildZip(t, map[string][]byte{
		"mimetype":          []byte("application/epub+zip"),
		"OEBPS/ch1.xhtml":   []byte("<html/>"),
		"OEBPS/content.opf": []byte("<package/>"),
	})

	out, err := Rewrite(src, "irrelevant")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected the input bytes unchanged")
	}
}

func TestRewrite_DecryptsListedEntries(t *testing.T) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	chapter := []byte("<html><body>the real chapter text</body></html>")

	src := buildZip(t, map[string][]byte{
		"mimetype":                []byte("application/epub+zip"),
		"META-INF/encryption.xml": encryptionXML("OEBPS/ch1.xhtml"),
		"OEBPS/ch1.xhtml":         encryptEntry(t, chapter, key, 12),
		"OEBPS/styles/main.css":   []byte("body{}"),
		"META-INF/container.xml":  []byte("<container/>"),
	})

	out, err := Rewrite(src, licenseFor(key))
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	entries := readZipMap(t, out)

	if _, ok := entries["META-INF/encryption.xml"]; ok {
		t.Fatalf("encryption descriptor must be dropped from the rebuilt archive")
	}
	if !bytes.Equal(entries["OEBPS/ch1.xhtml"], chapter) {
		t.Fatalf("encrypted entry was not decrypted")
	}
	if !bytes.Equal(entries["OEBPS/styles/main.css"], []byte("body{}")) {
		t.Fatalf("plaintext entry was altered")
	}
}

func TestRewrite_EntryFailureAbortsWhole(t *testing.T) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	entry := encryptEntry(t, []byte("secret"), key, 9)
	entry[entryHeaderSize+9] ^= 0xFF // corrupt ciphertext

	src := buildZip(t, map[string][]byte{
		"META-INF/encryption.xml": encryptionXML("OEBPS/ch1.xhtml"),
		"OEBPS/ch1.xhtml":         entry,
	})

	out, err := Rewrite(src, licenseFor(key))
	if out != nil {
		t.Fatalf("partial output must be discarded")
	}
	var entryErr *EntryError
	if !errors.As(err, &entryErr) {
		t.Fatalf("expected *EntryError, got %v", err)
	}
	if entryErr.Entry != "OEBPS/ch1.xhtml" {
		t.Fatalf("unexpected entry name %q", entryErr.Entry)
	}
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected wrapped ErrIntegrity, got %v", err)
	}
}

func TestRewrite_BadLicenseKey(t *testing.T) {
	src := buildZip(t, map[string][]byte{
		"META-INF/encryption.xml": encryptionXML("OEBPS/ch1.xhtml"),
		"OEBPS/ch1.xhtml":         []byte("x"),
	})

	if _, err := Rewrite(src, "%%%"); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("expected ErrKeyFormat, got %v", err)
	}
	short := base64.StdEncoding.EncodeToString([]byte("tooshort"))
	if _, err := Rewrite(src, short); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("expected ErrKeyFormat for short key, got %v", err)
	}
}

func TestRewrite_NotAZip(t *testing.T) {
	if _, err := Rewrite([]byte("definitely not a zip"), "x"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestRewrite_PreservesEntryModTime(t *testing.T) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	modified := time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string][]byte{
		"META-INF/encryption.xml": encryptionXML("OEBPS/ch1.xhtml"),
		"OEBPS/ch1.xhtml":         encryptEntry(t, []byte("dated chapter"), key, 6),
		"OEBPS/styles/main.css":   []byte("body{}"),
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Modified: modified})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	out, err := Rewrite(buf.Bytes(), licenseFor(key))
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("open rebuilt zip: %v", err)
	}
	for _, f := range zr.File {
		if !f.Modified.Equal(modified) {
			t.Fatalf("entry %s modified time %v, want %v", f.Name, f.Modified, modified)
		}
	}
}

func TestIsProtected(t *testing.T) {
	plain := buildZip(t, map[string][]byte{"mimetype": []byte("application/epub+zip")})
	if IsProtected(plain) {
		t.Fatalf("archive without descriptor reported protected")
	}
	locked := buildZip(t, map[string][]byte{
		"META-INF/encryption.xml": encryptionXML("OEBPS/ch1.xhtml"),
	})
	if !IsProtected(locked) {
		t.Fatalf("archive with descriptor reported unprotected")
	}
	if IsProtected([]byte("not a zip")) {
		t.Fatalf("garbage input reported protected")
	}
}

func TestRewrite_StoresEntriesUncompressed(t *testing.T) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	src := buildZip(t, map[string][]byte{
		"META-INF/encryption.xml": encryptionXML(),
		"OEBPS/ch1.xhtml":         bytes.Repeat([]byte("compressible "), 100),
	})

	out, err := Rewrite(src, licenseFor(key))
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("open rebuilt zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Method != zip.Store {
			t.Fatalf("entry %s not stored uncompressed", f.Name)
		}
	}
}
