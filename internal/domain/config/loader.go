package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// INISection is the section holding the settings in .ini files.
const INISection = "plugins"

// Load reads the configuration at path; the format follows the extension.
// Unset values keep their defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewConfigNotFoundError(path)
		}
		return nil, err
	}

	var f *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err = parseYAML(data)
		if err != nil {
			return nil, NewYAMLParseError(path, err)
		}
	case ".toml":
		f, err = parseTOML(data)
		if err != nil {
			return nil, NewConfigParseError(path, err)
		}
	case ".ini":
		f, err = parseINI(data)
		if err != nil {
			return nil, NewConfigParseError(path, err)
		}
	default:
		return nil, NewFormatError(path)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func parseYAML(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return f, nil
}

func parseTOML(data []byte) (*File, error) {
	f := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(f); err != nil {
		return nil, err
	}
	return f, nil
}

func parseINI(data []byte) (*File, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, err
	}

	sec := cfg.Section(INISection)
	f := Default()
	f.Directory = sec.Key("directory").String()
	f.AcceptedType = sec.Key("accepted_type").String()
	f.DescriptorFile = sec.Key("descriptor_file").String()
	f.LogoFile = sec.Key("logo_file").String()
	f.LogLevel = sec.Key("log_level").String()
	f.LogFormat = sec.Key("log_format").String()
	f.Extensions = listValue(sec, "extensions")
	f.Include = listValue(sec, "include")
	f.Exclude = listValue(sec, "exclude")

	for key, dst := range map[string]*bool{
		"allow_similar":         &f.AllowSimilar,
		"new_loader_per_plugin": &f.NewLoaderPerPlugin,
	} {
		if !sec.HasKey(key) {
			continue
		}
		v, err := sec.Key(key).Bool()
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	if sec.HasKey("recursive") {
		v, err := sec.Key("recursive").Bool()
		if err != nil {
			return nil, err
		}
		f.Recursive = &v
	}

	return f, nil
}

func listValue(sec *ini.Section, key string) []string {
	if !sec.HasKey(key) {
		return nil
	}
	var out []string
	for _, v := range sec.Key(key).Strings(",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
