package plugin

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	// PNG is the documented logo format.
	_ "image/png"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDescriptorFile is the descriptor entry name inside an archive.
	DefaultDescriptorFile = "plugin.xml"
	// DefaultLogoFile is the optional logo entry next to the descriptor.
	DefaultLogoFile = "logo.png"

	// maxDescriptorSize limits descriptor size to prevent memory exhaustion (256KB).
	maxDescriptorSize int64 = 256 * 1024
	// maxLogoSize limits the logo entry (4MB).
	maxLogoSize int64 = 4 * 1024 * 1024
)

// descriptorDoc is the serialized descriptor. The same document shape is
// accepted as XML or YAML:
//
//	<plugin id="clock" version="1.2.0" type="client">
//	  <title>Clock</title>
//	  <main>com.example.Clock</main>
//	  <initialization relative="*" relation="after"/>
//	  <libraries>
//	    <library id="tz" title="TZ data" version="2024a" file="tz.jar"/>
//	  </libraries>
//	</plugin>
type descriptorDoc struct {
	XMLName     xml.Name     `xml:"plugin" yaml:"-"`
	ID          string       `xml:"id,attr" yaml:"id"`
	Version     string       `xml:"version,attr" yaml:"version"`
	Type        string       `xml:"type,attr" yaml:"type"`
	Title       string       `xml:"title" yaml:"title"`
	Description string       `xml:"description" yaml:"description"`
	Main        string       `xml:"main" yaml:"main"`
	Init        *strategyDoc `xml:"initialization" yaml:"initialization"`
	Libraries   []libraryDoc `xml:"libraries>library" yaml:"libraries"`
}

type strategyDoc struct {
	Relative string `xml:"relative,attr" yaml:"relative"`
	Relation string `xml:"relation,attr" yaml:"relation"`
}

type libraryDoc struct {
	ID      string `xml:"id,attr" yaml:"id"`
	Title   string `xml:"title,attr" yaml:"title"`
	Version string `xml:"version,attr" yaml:"version"`
	File    string `xml:"file,attr" yaml:"file"`
}

func (d *descriptorDoc) information() *Information {
	info := &Information{
		Identity: Identity{
			ID:      strings.TrimSpace(d.ID),
			Version: ParseVersion(d.Version),
			Type:    strings.TrimSpace(d.Type),
		},
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		MainType:    strings.TrimSpace(d.Main),
	}
	if d.Init != nil {
		relative := strings.TrimSpace(d.Init.Relative)
		if relative == "" {
			relative = AllID
		}
		info.Strategy = &Strategy{ID: relative, Relation: Relation(strings.ToLower(strings.TrimSpace(d.Init.Relation)))}
	}
	for _, lib := range d.Libraries {
		info.Libraries = append(info.Libraries, Library{
			ID:      strings.TrimSpace(lib.ID),
			Title:   strings.TrimSpace(lib.Title),
			Version: strings.TrimSpace(lib.Version),
			File:    strings.TrimSpace(lib.File),
		})
	}
	return info
}

// DescriptorReader extracts descriptors and logos from plugin archives.
type DescriptorReader struct {
	// DescriptorFile is matched as a suffix of archive entry names.
	DescriptorFile string
	// LogoFile is looked up in the descriptor's archive directory.
	LogoFile string
}

// NewDescriptorReader creates a reader with the default entry names.
func NewDescriptorReader() *DescriptorReader {
	return &DescriptorReader{
		DescriptorFile: DefaultDescriptorFile,
		LogoFile:       DefaultLogoFile,
	}
}

// Read opens the archive at path and returns its descriptor and logo.
// An archive without a descriptor yields ErrNotPlugin. Every other failure
// is a *DescriptorError naming path. A missing logo is not an error.
func (r *DescriptorReader) Read(path string) (*Information, image.Image, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, &DescriptorError{Path: path, Err: err}
	}
	defer func() { _ = zr.Close() }()

	entry := r.findDescriptor(zr.File)
	if entry == nil {
		return nil, nil, ErrNotPlugin
	}

	data, err := readEntry(entry, maxDescriptorSize)
	if err != nil {
		return nil, nil, &DescriptorError{Path: path, Err: err}
	}

	info, err := decodeDescriptor(entry.Name, data)
	if err != nil {
		return nil, nil, &DescriptorError{Path: path, Err: err}
	}

	logo, err := r.readLogo(zr.File, entry.Name)
	if err != nil {
		return nil, nil, &DescriptorError{Path: path, Err: err}
	}

	return info, logo, nil
}

func (r *DescriptorReader) descriptorFile() string {
	if r.DescriptorFile == "" {
		return DefaultDescriptorFile
	}
	return r.DescriptorFile
}

func (r *DescriptorReader) logoFile() string {
	if r.LogoFile == "" {
		return DefaultLogoFile
	}
	return r.LogoFile
}

func (r *DescriptorReader) findDescriptor(files []*zip.File) *zip.File {
	name := r.descriptorFile()
	for _, f := range files {
		if !f.FileInfo().IsDir() && strings.HasSuffix(f.Name, name) {
			return f
		}
	}
	return nil
}

func (r *DescriptorReader) readLogo(files []*zip.File, descriptorEntry string) (image.Image, error) {
	dir := path.Dir(descriptorEntry)
	want := r.logoFile()
	if dir != "." {
		want = dir + "/" + want
	}

	for _, f := range files {
		if f.Name != want {
			continue
		}
		data, err := readEntry(f, maxLogoSize)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding logo %s: %w", f.Name, err)
		}
		return img, nil
	}
	return nil, nil
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if int64(f.UncompressedSize64) > limit {
		return nil, &DescriptorSizeError{Size: int64(f.UncompressedSize64), Limit: limit}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, &DescriptorSizeError{Size: int64(len(data)), Limit: limit}
	}
	return data, nil
}

// decodeDescriptor picks the format from the entry name: .yaml and .yml are
// YAML, everything else is XML.
func decodeDescriptor(entryName string, data []byte) (*Information, error) {
	var doc descriptorDoc

	switch strings.ToLower(path.Ext(entryName)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entryName, err)
		}
	default:
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entryName, err)
		}
	}

	info := doc.information()
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor %s: %w", entryName, err)
	}
	return info, nil
}
