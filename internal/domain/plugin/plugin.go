// Package plugin discovers plugin archives, arbitrates between their
// versions, loads them into isolated entry contexts and orders them by their
// declared initialization strategies.
package plugin

import (
	"image"
	"sync"
)

// Plugin is a loaded plugin instance.
//
// Implementations normally embed Base, which provides every method.
type Plugin interface {
	// Attach hands the plugin its manager and detection record. It is
	// called once, right after construction.
	Attach(host *Manager, detected *Detected)
	// Detected returns the record the plugin was loaded from.
	Detected() *Detected
	// Strategy returns the initialization strategy used for ordering.
	Strategy() Strategy
}

// Describer is implemented by plugins that can be registered without an
// archive; the returned descriptor becomes the plugin's record.
type Describer interface {
	Describe() *Information
}

// Base is the embeddable default implementation of Plugin.
type Base struct {
	mu       sync.RWMutex
	host     *Manager
	detected *Detected
}

// Attach stores the manager and detection record.
func (b *Base) Attach(host *Manager, detected *Detected) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.host = host
	b.detected = detected
}

// Detected returns the detection record, nil before Attach.
func (b *Base) Detected() *Detected {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.detected
}

// Manager returns the manager that loaded the plugin, nil before Attach.
func (b *Base) Manager() *Manager {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.host
}

// Information returns the plugin descriptor.
func (b *Base) Information() *Information {
	if d := b.Detected(); d != nil {
		return d.Info
	}
	return nil
}

// ID returns the descriptor id.
func (b *Base) ID() string {
	if info := b.Information(); info != nil {
		return info.ID
	}
	return ""
}

// Logo returns the logo shipped in the archive, nil when there is none.
func (b *Base) Logo() image.Image {
	if d := b.Detected(); d != nil {
		return d.Logo
	}
	return nil
}

// Strategy returns the descriptor's initialization strategy, or Any when the
// descriptor declares none. Plugins may override it.
func (b *Base) Strategy() Strategy {
	if info := b.Information(); info != nil && info.Strategy != nil {
		return *info.Strategy
	}
	return Any()
}

func pluginID(p Plugin) string {
	if d := p.Detected(); d != nil && d.Info != nil {
		return d.Info.ID
	}
	return ""
}

var _ Plugin = (*Base)(nil)
