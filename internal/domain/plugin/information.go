package plugin

import "fmt"

// Identity names one version of a plugin. The ID is stable across versions;
// duplicate and deprecation checks always compare (ID, Version) pairs.
type Identity struct {
	ID      string
	Version *Version
	// Type is an optional tag such as "client" or "server" matched against
	// the manager's accepted type.
	Type string
}

// String renders "id@version", or just the id when no version is declared.
func (i Identity) String() string {
	if i.Version == nil {
		return i.ID
	}
	return i.ID + "@" + i.Version.String()
}

// Library is a dependency archive declared by a plugin. File is resolved
// relative to the directory holding the plugin archive.
type Library struct {
	ID      string
	Title   string
	Version string
	File    string
}

// Information is a plugin descriptor. It is not modified after it is read.
type Information struct {
	Identity

	Title       string
	Description string
	// MainType names the plugin's entry type.
	MainType  string
	Libraries []Library
	// Strategy is the initialization strategy declared by the descriptor,
	// nil when the descriptor is silent.
	Strategy *Strategy
}

// Validate checks the fields every loadable descriptor needs.
func (i *Information) Validate() error {
	ve := &ValidationError{}
	if i.ID == "" {
		ve.Add("id is required. Example: <plugin id=\"clock\" ...>")
	}
	if i.MainType == "" {
		ve.Add("main entry type is required. Example: <main>com.example.Clock</main>")
	}
	for n, lib := range i.Libraries {
		if lib.ID == "" {
			ve.Addf("libraries[%d].id is required", n)
		}
		if lib.File == "" {
			ve.Addf("libraries[%d].file is required", n)
		}
	}
	if i.Strategy != nil {
		if err := i.Strategy.Validate(); err != nil {
			ve.Add(err.Error())
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// Label renders the library for diagnostics.
func (l Library) Label() string {
	title := l.Title
	if title == "" {
		title = l.ID
	}
	if l.Version == "" {
		return title
	}
	return fmt.Sprintf("%s %s", title, l.Version)
}
