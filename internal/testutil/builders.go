package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// DescriptorBuilder builds plugin descriptors for tests.
type DescriptorBuilder struct {
	doc descriptorDoc
}

type descriptorDoc struct {
	XMLName     xml.Name     `xml:"plugin" yaml:"-"`
	ID          string       `xml:"id,attr" yaml:"id"`
	Version     string       `xml:"version,attr,omitempty" yaml:"version,omitempty"`
	Type        string       `xml:"type,attr,omitempty" yaml:"type,omitempty"`
	Title       string       `xml:"title,omitempty" yaml:"title,omitempty"`
	Description string       `xml:"description,omitempty" yaml:"description,omitempty"`
	Main        string       `xml:"main" yaml:"main"`
	Init        *initDoc     `xml:"initialization,omitempty" yaml:"initialization,omitempty"`
	Libraries   []libraryDoc `xml:"libraries>library" yaml:"libraries,omitempty"`
}

type initDoc struct {
	Relative string `xml:"relative,attr" yaml:"relative"`
	Relation string `xml:"relation,attr" yaml:"relation"`
}

type libraryDoc struct {
	ID      string `xml:"id,attr" yaml:"id"`
	Title   string `xml:"title,attr,omitempty" yaml:"title,omitempty"`
	Version string `xml:"version,attr,omitempty" yaml:"version,omitempty"`
	File    string `xml:"file,attr" yaml:"file"`
}

// NewDescriptor starts a descriptor with an id, version and entry type.
func NewDescriptor(id, version, main string) *DescriptorBuilder {
	return &DescriptorBuilder{doc: descriptorDoc{ID: id, Version: version, Main: main}}
}

// WithType sets the plugin type tag.
func (b *DescriptorBuilder) WithType(t string) *DescriptorBuilder {
	b.doc.Type = t
	return b
}

// WithTitle sets the human readable title.
func (b *DescriptorBuilder) WithTitle(title string) *DescriptorBuilder {
	b.doc.Title = title
	return b
}

// WithLibrary declares a library file next to the archive.
func (b *DescriptorBuilder) WithLibrary(id, version, file string) *DescriptorBuilder {
	b.doc.Libraries = append(b.doc.Libraries, libraryDoc{
		ID:      id,
		Title:   strings.ToUpper(id),
		Version: version,
		File:    file,
	})
	return b
}

// WithInitialization declares an initialization strategy.
func (b *DescriptorBuilder) WithInitialization(relative, relation string) *DescriptorBuilder {
	b.doc.Init = &initDoc{Relative: relative, Relation: relation}
	return b
}

// XML renders the descriptor as plugin.xml content.
func (b *DescriptorBuilder) XML() []byte {
	out, err := xml.MarshalIndent(b.doc, "", "  ")
	if err != nil {
		panic(err)
	}
	return append([]byte(xml.Header), out...)
}

// YAML renders the descriptor as plugin.yaml content.
func (b *DescriptorBuilder) YAML() []byte {
	out, err := yaml.Marshal(b.doc)
	if err != nil {
		panic(err)
	}
	return out
}

// ArchiveBuilder builds zip archives in memory.
type ArchiveBuilder struct {
	names []string
	files map[string][]byte
}

// NewArchive starts an empty archive.
func NewArchive() *ArchiveBuilder {
	return &ArchiveBuilder{files: make(map[string][]byte)}
}

// WithFile adds an entry. Later entries with the same name replace earlier ones.
func (b *ArchiveBuilder) WithFile(name string, data []byte) *ArchiveBuilder {
	if _, ok := b.files[name]; !ok {
		b.names = append(b.names, name)
	}
	b.files[name] = data
	return b
}

// WithDescriptor adds d as "<dir>plugin.xml"; pass "" or "META-INF/".
func (b *ArchiveBuilder) WithDescriptor(dir string, d *DescriptorBuilder) *ArchiveBuilder {
	return b.WithFile(dir+"plugin.xml", d.XML())
}

// Bytes returns the zip content.
func (b *ArchiveBuilder) Bytes(t testing.TB) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range b.names {
		w, err := zw.Create(name)
		require.NoError(t, err, "creating archive entry %s", name)
		_, err = w.Write(b.files[name])
		require.NoError(t, err, "writing archive entry %s", name)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteTo writes the archive to dir/fileName and returns the path.
func (b *ArchiveBuilder) WriteTo(t testing.TB, dir, fileName string) string {
	t.Helper()

	path := filepath.Join(dir, fileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, b.Bytes(t), 0o644), "writing archive %s", path)
	return path
}
