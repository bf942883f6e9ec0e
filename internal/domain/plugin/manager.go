package plugin

import (
	"context"
	"fmt"
	"image"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/plughost/internal/domain/sandbox"
	"github.com/felixgeelhaar/plughost/internal/ports"
)

// Option configures a Manager.
type Option func(*Manager)

// WithDirectory sets the plugins directory. Without one CheckPlugins does
// nothing.
func WithDirectory(dir string) Option {
	return func(m *Manager) {
		m.dir = dir
	}
}

// WithRecursive sets whether subdirectories are scanned (default true).
func WithRecursive(recursive bool) Option {
	return func(m *Manager) {
		m.recursive = recursive
	}
}

// WithFileFilter replaces the candidate file filter.
func WithFileFilter(filter FileFilter) Option {
	return func(m *Manager) {
		m.fileFilter = filter
	}
}

// WithAcceptedType only loads plugins with the given type tag.
func WithAcceptedType(pluginType string) Option {
	return func(m *Manager) {
		m.resolver.AcceptedType = pluginType
	}
}

// WithFilter sets a custom acceptance filter.
func WithFilter(filter Filter) Option {
	return func(m *Manager) {
		m.resolver.Filter = filter
	}
}

// WithAllowSimilar allows different versions of one plugin id to be loaded
// side by side.
func WithAllowSimilar(allow bool) Option {
	return func(m *Manager) {
		m.resolver.AllowSimilar = allow
	}
}

// WithNewLoaderPerPlugin selects an isolated entry context per plugin
// instead of one shared context.
func WithNewLoaderPerPlugin(isolated bool) Option {
	return func(m *Manager) {
		m.newLoaderPerPlugin = isolated
	}
}

// WithDescriptorFile sets the descriptor entry name (default plugin.xml).
func WithDescriptorFile(name string) Option {
	return func(m *Manager) {
		m.reader.DescriptorFile = name
	}
}

// WithLogoFile sets the logo entry name (default logo.png).
func WithLogoFile(name string) Option {
	return func(m *Manager) {
		m.reader.LogoFile = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithFactories registers host factories for entry types.
func WithFactories(factories Factories) Option {
	return func(m *Manager) {
		for name, f := range factories {
			m.factories[name] = f
		}
	}
}

// WithSandbox sets the configuration of the WebAssembly runtimes.
func WithSandbox(config sandbox.Config) Option {
	return func(m *Manager) {
		m.sandbox = config
	}
}

// CheckResult summarizes one CheckPlugins call.
type CheckResult struct {
	// ID correlates the log lines of the run.
	ID        string
	Dir       string
	Recursive bool
	// Detected lists the candidates found by this call.
	Detected []*Detected
	// Loaded lists the plugins loaded by this call in final order.
	Loaded []Plugin
	// Failed lists the candidates this call rejected or failed to load.
	Failed []*Detected
}

// checkKey marks contexts passed to listeners during a check.
type checkKey struct{}

// checkRun is the value behind checkKey. It stops vouching for the
// context once the check or registration that created it has returned.
type checkRun struct {
	owner *Manager
	done  atomic.Bool
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// Manager discovers, loads and orders plugins. All methods are safe for
// concurrent use; checks and registrations are serialized.
type Manager struct {
	dir                string
	recursive          bool
	fileFilter         FileFilter
	newLoaderPerPlugin bool
	factories          Factories
	sandbox            sandbox.Config
	logger             ports.Logger

	reader   *DescriptorReader
	resolver *Resolver
	scanner  *Scanner
	loader   Loader
	registry *Registry

	// scanMu serializes checks and registrations.
	scanMu sync.Mutex

	mu        sync.RWMutex
	detected     []*Detected
	listeners    []listenerEntry
	nextListener uint64
	closed       bool
}

// NewManager creates a manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		recursive: true,
		factories: make(Factories),
		sandbox:   sandbox.DefaultConfig(),
		logger:    nopLogger{},
		reader:    NewDescriptorReader(),
		resolver:  NewResolver(nil),
		registry:  NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.resolver.logger = m.logger
	m.scanner = NewScanner(m.reader, m.fileFilter, m.logger)
	if m.newLoaderPerPlugin {
		m.loader = NewIsolatedLoader(m.factories, m.sandbox, m.logger)
	} else {
		m.loader = NewSharedLoader(m.factories, m.sandbox, m.logger)
	}
	return m
}

// Directory returns the configured plugins directory.
func (m *Manager) Directory() string {
	return m.dir
}

// Recursive reports whether CheckPlugins scans subdirectories.
func (m *Manager) Recursive() bool {
	return m.recursive
}

// RegisterFactory makes a host entry type available to later checks.
func (m *Manager) RegisterFactory(mainType string, factory Factory) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()
	m.factories[mainType] = factory
}

// AddListener registers a listener and returns a function that removes
// exactly this registration.
func (m *Manager) AddListener(l Listener) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listenerEntry{id: id, listener: l})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.listeners = slices.DeleteFunc(m.listeners, func(e listenerEntry) bool {
			return e.id == id
		})
	}
}

// RemoveListener unregisters every registration equal to l. Listeners of
// uncomparable types (structs holding slices, maps or funcs) never match;
// use the function returned by AddListener for those.
func (m *Manager) RemoveListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = slices.DeleteFunc(m.listeners, func(e listenerEntry) bool {
		return sameListener(e.listener, l)
	})
}

func sameListener(a, b Listener) (same bool) {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return false
	}
	// comparable structs may still hold uncomparable interface values
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// CheckPlugins scans the configured directory.
func (m *Manager) CheckPlugins(ctx context.Context) (*CheckResult, error) {
	return m.CheckPluginsIn(ctx, m.dir, m.recursive)
}

// CheckPluginsIn scans dir, resolves and loads the new candidates, reorders
// the loaded plugins and notifies listeners. Failures of single candidates
// are recorded on their Detected records and never returned. An empty dir
// makes the call a no-op. A listener calling back into CheckPluginsIn with
// the ctx it was handed gets ErrCheckInProgress.
//
// That ctx only marks the running check. Once the check has returned it
// no longer bypasses the scan lock, so a listener that keeps it gets
// ordinary serialized calls. Handing it to another goroutine while the
// check runs is not supported: such calls would run unserialized.
func (m *Manager) CheckPluginsIn(ctx context.Context, dir string, recursive bool) (*CheckResult, error) {
	if dir == "" {
		return &CheckResult{}, nil
	}
	if m.inCheck(ctx) {
		return nil, ErrCheckInProgress
	}

	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	if m.isClosed() {
		return nil, ErrManagerClosed
	}

	run := &checkRun{owner: m}
	defer run.done.Store(true)

	result := &CheckResult{ID: uuid.NewString(), Dir: dir, Recursive: recursive}
	logger := m.logger.With(ports.F("check", result.ID))
	ctx = ports.ContextWithLogger(context.WithValue(ctx, checkKey{}, run), logger)

	logger.Info(ctx, "checking plugins", ports.F("dir", dir), ports.F("recursive", recursive))
	m.fireCheckStarted(ctx, dir, recursive)

	found, err := m.scanner.Scan(ctx, dir, recursive)
	m.mu.Lock()
	m.detected = append(m.detected, found...)
	m.mu.Unlock()
	result.Detected = found

	if len(found) > 0 {
		m.fireDetected(ctx, found)
	}

	if err == nil {
		recent, failed, ierr := m.initialize(ctx, logger)
		result.Failed = failed

		final := m.registry.List()
		if len(recent) > 0 {
			final = m.registry.Reorder()
		}
		result.Loaded = SortByIndex(recent, final)

		m.fireInitialized(ctx, result.Loaded)
		logger.Info(ctx, "plugins check finished",
			ports.F("detected", len(result.Detected)),
			ports.F("loaded", len(result.Loaded)),
			ports.F("failed", len(result.Failed)),
		)
		err = ierr
	}

	m.fireCheckEnded(ctx, dir, recursive)
	return result, err
}

// initialize resolves and loads every record still in the detected status.
// When ctx is cancelled it stops between candidates and returns ctx.Err();
// the remaining records stay detected.
func (m *Manager) initialize(ctx context.Context, logger ports.Logger) (loaded []Plugin, failed []*Detected, err error) {
	libraries := make(map[string][]sharedLibrary)

	for _, d := range m.Detected() {
		if d.Status() != StatusDetected {
			continue
		}
		if err = ctx.Err(); err != nil {
			break
		}

		if !m.resolver.Resolve(ctx, d, m.Detected()) {
			failed = append(failed, d)
			continue
		}

		p, libs, err := m.load(ctx, logger, d)
		if err != nil {
			failed = append(failed, d)
			continue
		}
		loaded = append(loaded, p)
		for _, lib := range libs {
			libraries[lib.ID] = append(libraries[lib.ID], sharedLibrary{owner: d.Info, library: lib.Library})
		}
	}

	warnSharedLibraries(ctx, logger, libraries)
	return loaded, failed, err
}

func (m *Manager) load(ctx context.Context, logger ports.Logger, d *Detected) (Plugin, []ResolvedLibrary, error) {
	fail := func(err error) (Plugin, []ResolvedLibrary, error) {
		logger.Error(ctx, "unable to initialize plugin", candidateFields(d, ports.Err(err))...)
		if ferr := d.markFailed(CauseInternal, err.Error(), err); ferr != nil {
			logger.Error(ctx, "unable to record plugin failure", candidateFields(d, ports.Err(ferr))...)
		}
		return nil, nil, err
	}

	classpath, libs, missing, err := ResolveClasspath(d)
	if err != nil {
		return fail(err)
	}
	for _, lib := range missing {
		logger.Warn(ctx, "unable to locate library", candidateFields(d, ports.F("library", lib.File))...)
	}

	logger.Info(ctx, "initializing plugin", candidateFields(d)...)
	if err := d.beginLoading(classpath); err != nil {
		return fail(err)
	}

	p, err := m.loader.Load(ctx, LoadRequest{Detected: d, Classpath: classpath})
	if err != nil {
		return fail(err)
	}

	if err := m.publish(p, d); err != nil {
		return fail(err)
	}

	logger.Info(ctx, "plugin initialized", candidateFields(d)...)
	return p, libs, nil
}

// publish attaches p, registers it and marks d loaded. A panic raised by
// the plugin's own methods fails the record instead of the caller.
func (m *Manager) publish(p Plugin, d *Detected) (err error) {
	method := "Attach"
	defer func() {
		if r := recover(); r != nil {
			err = &PluginPanicError{Plugin: d.String(), Method: method, Value: r}
		}
	}()

	p.Attach(m, d)
	method = "Strategy"
	_ = p.Strategy()
	method = "Detected"
	_ = p.Detected()

	if err := m.registry.Add(p); err != nil {
		return err
	}
	return d.markLoaded(p)
}

type sharedLibrary struct {
	owner   *Information
	library Library
}

// warnSharedLibraries logs one warning per library id declared by more than
// one loaded plugin.
func warnSharedLibraries(ctx context.Context, logger ports.Logger, libraries map[string][]sharedLibrary) {
	ids := make([]string, 0, len(libraries))
	for id, users := range libraries {
		if len(users) > 1 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)

	for _, id := range ids {
		users := libraries[id]
		pairs := make([]string, 0, len(users))
		for _, u := range users {
			pairs = append(pairs, fmt.Sprintf("%s (version %s)", u.owner, u.library.Version))
		}
		logger.Warn(ctx, "library is used by several plugins",
			ports.F("library", users[0].library.Label()),
			ports.F("plugins", strings.Join(pairs, ", ")),
		)
	}
	logger.Warn(ctx, "make sure sharing a library between plugins is intended")
}

// RegisterPlugin registers an instance built by the host. The plugin must
// implement Describer.
func (m *Manager) RegisterPlugin(ctx context.Context, p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	describer, ok := p.(Describer)
	if !ok {
		return ErrNoInformation
	}
	return m.RegisterPluginWith(ctx, p, describer.Describe(), nil)
}

// RegisterPluginWith registers an instance built by the host with an
// explicit descriptor and logo. The plugin is loaded immediately and
// listeners receive it in a PluginsInitialized call.
func (m *Manager) RegisterPluginWith(ctx context.Context, p Plugin, info *Information, logo image.Image) error {
	if p == nil {
		return ErrNilPlugin
	}
	if info == nil {
		return ErrNoInformation
	}
	if info.ID == "" {
		return &ValidationError{Errors: []string{"id is required"}}
	}

	if !m.inCheck(ctx) {
		m.scanMu.Lock()
		defer m.scanMu.Unlock()
		run := &checkRun{owner: m}
		defer run.done.Store(true)
		ctx = context.WithValue(ctx, checkKey{}, run)
	}

	if m.isClosed() {
		return ErrManagerClosed
	}
	if !m.resolver.AllowSimilar && m.registry.Contains(info.ID) {
		return &PluginExistsError{ID: info.ID}
	}

	d, err := newDetected("", "", info, logo)
	if err != nil {
		return err
	}
	if err := d.beginLoading(nil); err != nil {
		return err
	}
	if err := m.publish(p, d); err != nil {
		return err
	}

	m.mu.Lock()
	m.detected = append(m.detected, d)
	m.mu.Unlock()

	m.logger.Info(ctx, "pre-loaded plugin initialized", ports.F("plugin", info.String()))
	m.fireInitialized(ctx, []Plugin{p})
	return nil
}

// Detected returns every record detected or registered so far.
func (m *Manager) Detected() []*Detected {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.detected)
}

// Available returns the loaded plugins in initialization order.
func (m *Manager) Available() []Plugin {
	return m.registry.List()
}

// Get returns the loaded plugin with id.
func (m *Manager) Get(id string) (Plugin, bool) {
	return m.registry.Get(id)
}

// GetByType returns the loaded plugin whose concrete type is P.
func GetByType[P Plugin](m *Manager) (P, bool) {
	var zero P
	p, ok := m.registry.ByType(reflect.TypeFor[P]())
	if !ok {
		return zero, false
	}
	typed, ok := p.(P)
	if !ok {
		return zero, false
	}
	return typed, true
}

// DetectedCount returns the number of detected and registered records.
func (m *Manager) DetectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.detected)
}

// LoadedCount returns the number of loaded plugins.
func (m *Manager) LoadedCount() int {
	return m.registry.Count()
}

// FailedCount returns DetectedCount minus LoadedCount.
func (m *Manager) FailedCount() int {
	return m.DetectedCount() - m.LoadedCount()
}

// IsDeprecated reports whether a newer version of d's plugin was detected.
func (m *Manager) IsDeprecated(d *Detected) bool {
	return IsDeprecated(d, m.Detected())
}

// Close releases the entry contexts. Later checks and registrations fail
// with ErrManagerClosed.
func (m *Manager) Close(ctx context.Context) error {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.loader.Close(ctx)
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) inCheck(ctx context.Context) bool {
	run, ok := ctx.Value(checkKey{}).(*checkRun)
	return ok && run.owner == m && !run.done.Load()
}

func (m *Manager) snapshotListeners() []Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Listener, 0, len(m.listeners))
	for _, e := range m.listeners {
		out = append(out, e.listener)
	}
	return out
}

func (m *Manager) fireCheckStarted(ctx context.Context, dir string, recursive bool) {
	for _, l := range m.snapshotListeners() {
		l.PluginsCheckStarted(ctx, dir, recursive)
	}
}

func (m *Manager) fireCheckEnded(ctx context.Context, dir string, recursive bool) {
	for _, l := range m.snapshotListeners() {
		l.PluginsCheckEnded(ctx, dir, recursive)
	}
}

func (m *Manager) fireDetected(ctx context.Context, detected []*Detected) {
	for _, l := range m.snapshotListeners() {
		l.PluginsDetected(ctx, slices.Clone(detected))
	}
}

func (m *Manager) fireInitialized(ctx context.Context, plugins []Plugin) {
	for _, l := range m.snapshotListeners() {
		l.PluginsInitialized(ctx, slices.Clone(plugins))
	}
}
