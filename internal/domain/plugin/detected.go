package plugin

import (
	"image"
	"path/filepath"
	"sync"
)

// Detected is a plugin candidate found by a scan or registered directly.
// The source fields never change; status and outcome fields advance only
// through the transitions of the status machine.
type Detected struct {
	// Dir is the directory holding the archive; empty for registered plugins.
	Dir string
	// File is the archive file name; empty for registered plugins.
	File string
	// Info is the descriptor read from the archive.
	Info *Information
	// Logo is the decoded logo entry, nil when the archive has none.
	Logo image.Image

	mu        sync.RWMutex
	machine   *statusMachine
	plugin    Plugin
	cause     Cause
	message   string
	err       error
	classpath []string
}

func newDetected(dir, file string, info *Information, logo image.Image) (*Detected, error) {
	machine, err := newStatusMachine()
	if err != nil {
		return nil, err
	}
	return &Detected{
		Dir:     dir,
		File:    file,
		Info:    info,
		Logo:    logo,
		machine: machine,
	}, nil
}

// Status returns the current status.
func (d *Detected) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.machine.status
}

// Plugin returns the loaded instance, nil unless the status is loaded.
func (d *Detected) Plugin() Plugin {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.plugin
}

// Cause returns the failure cause, empty unless the status is failed.
func (d *Detected) Cause() Cause {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cause
}

// Message returns the human readable failure message.
func (d *Detected) Message() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.message
}

// Err returns the underlying error of an internal failure.
func (d *Detected) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// Classpath returns the resolved archive and library paths used to load the
// plugin, nil before loading.
func (d *Detected) Classpath() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.classpath...)
}

// Registered reports whether the plugin bypassed discovery.
func (d *Detected) Registered() bool {
	return d.File == ""
}

// Path returns the archive path, empty for registered plugins.
func (d *Detected) Path() string {
	if d.Registered() {
		return ""
	}
	return filepath.Join(d.Dir, d.File)
}

// String renders the descriptor identity.
func (d *Detected) String() string {
	if d.Info == nil {
		return d.Path()
	}
	return d.Info.String()
}

func (d *Detected) beginLoading(classpath []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.machine.send(EventLoad); err != nil {
		return err
	}
	d.classpath = classpath
	return nil
}

func (d *Detected) markLoaded(p Plugin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.machine.send(EventLoaded); err != nil {
		return err
	}
	d.plugin = p
	return nil
}

func (d *Detected) markFailed(cause Cause, message string, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, serr := d.machine.send(EventFail); serr != nil {
		return serr
	}
	d.cause = cause
	d.message = message
	d.err = err
	return nil
}
