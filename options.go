package zrtpfilter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultClientID is sent in ZRTP Hello messages.
	DefaultClientID = "zrtpfilter-go 1 "

	// ClientIDLength is the fixed ZRTP client identifier length.
	ClientIDLength = 16

	// DefaultCacheFile is the retained secrets cache created in the home
	// directory when no cache name is configured.
	DefaultCacheFile = ".GNUccRTP.zid"

	// DefaultReplayWindow is the SRTP and SRTCP replay list length.
	DefaultReplayWindow = 64
)

// Options configures a Filter. File-backed fields carry TOML tags; the
// remaining fields can only be set in code.
type Options struct {
	// Name labels log entries and metrics of this stream.
	Name string `toml:"name"`

	// LocalSSRC overrides the SSRC otherwise learned from the first
	// outgoing RTP packet. Zero means learn.
	LocalSSRC uint32 `toml:"local_ssrc"`

	// MitmMode enables trusted MitM (PBX) enrollment.
	MitmMode bool `toml:"mitm_mode"`

	// CacheName is the retained secrets cache handed to the engine.
	CacheName string `toml:"cache_name"`

	// ClientID identifies this endpoint; padded to 16 characters.
	ClientID string `toml:"client_id"`

	// ReplayWindow is the replay list length of every crypto context.
	ReplayWindow uint `toml:"replay_window"`

	Logger     *logrus.Logger        `toml:"-"`
	Registerer prometheus.Registerer `toml:"-"`
	Clock      Clock                 `toml:"-"`
}

// NewOptions returns options with default values.
func NewOptions() *Options {
	return &Options{
		Name:         "zrtp",
		CacheName:    defaultCacheName(),
		ClientID:     DefaultClientID,
		ReplayWindow: DefaultReplayWindow,
	}
}

func defaultCacheName() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultCacheFile
	}
	return filepath.Join(home, DefaultCacheFile)
}

// LoadOptions reads a TOML file on top of the defaults.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	opts := NewOptions()
	if err := toml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks option ranges.
func (o *Options) Validate() error {
	if len(o.ClientID) > ClientIDLength {
		return fmt.Errorf("%w: client id %q longer than %d characters", ErrInvalidOptions, o.ClientID, ClientIDLength)
	}
	if o.ReplayWindow == 0 {
		return fmt.Errorf("%w: replay window must be positive", ErrInvalidOptions)
	}
	if o.CacheName == "" {
		return fmt.Errorf("%w: empty cache name", ErrInvalidOptions)
	}
	return nil
}

// paddedClientID returns the client id space padded to ClientIDLength.
func (o *Options) paddedClientID() string {
	id := o.ClientID
	if id == "" {
		id = DefaultClientID
	}
	return fmt.Sprintf("%-16s", id)
}
