package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

type LogConfig struct {
	Level           string `toml:"level"`
	Prefix          string `toml:"prefix"`
	ReportCaller    bool   `toml:"report_caller"`
	ReportTimestamp bool   `toml:"report_timestamp"`
}

type CoreThreadConfig struct {
	/** @brief Initial capacity of the command ring. The ring grows when full. */
	QueueCapacity int `toml:"queue_capacity"`
	/** @brief Enables the core thread assertions on device-mutating calls. */
	ThreadChecks bool `toml:"thread_checks"`
	/** @brief Pins the core thread goroutine to one OS thread. */
	LockOSThread bool `toml:"lock_os_thread"`
}

type ParamsConfig struct {
	/** @brief Transpose matrices at write time (row/column major backends). */
	TransposeMatrices bool `toml:"transpose_matrices"`
}

type MeshConfig struct {
	/** @brief "static" or "dynamic". */
	BufferUsage string `toml:"buffer_usage"`
	/** @brief "uint16" or "uint32", used for the dummy mesh. */
	DummyIndexType string `toml:"dummy_index_type"`
}

type JobsConfig struct {
	/** @brief Number of simulation-side workers, e.g. for mesh file decoding. */
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// Config is the engine configuration, usually decoded from a TOML file.
type Config struct {
	Log        LogConfig        `toml:"log"`
	CoreThread CoreThreadConfig `toml:"core_thread"`
	Params     ParamsConfig     `toml:"params"`
	Mesh       MeshConfig       `toml:"mesh"`
	Jobs       JobsConfig       `toml:"jobs"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:           "debug",
			Prefix:          "Engine 🏎️ ",
			ReportCaller:    true,
			ReportTimestamp: true,
		},
		CoreThread: CoreThreadConfig{
			QueueCapacity: 256,
			ThreadChecks:  true,
			LockOSThread:  true,
		},
		Mesh: MeshConfig{
			BufferUsage:    "static",
			DummyIndexType: "uint32",
		},
		Jobs: JobsConfig{
			Workers:   2,
			QueueSize: 64,
		},
	}
}

// LoadConfig reads the TOML file at path on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CoreThread.QueueCapacity <= 0 {
		return fmt.Errorf("core_thread.queue_capacity must be > 0, got %d", c.CoreThread.QueueCapacity)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0, got %d", c.Jobs.Workers)
	}
	if c.Jobs.QueueSize < 0 {
		return fmt.Errorf("jobs.queue_size must be >= 0, got %d", c.Jobs.QueueSize)
	}
	switch c.Mesh.BufferUsage {
	case "static", "dynamic":
	default:
		return fmt.Errorf("mesh.buffer_usage must be static or dynamic, got %q", c.Mesh.BufferUsage)
	}
	switch c.Mesh.DummyIndexType {
	case "uint16", "uint32":
	default:
		return fmt.Errorf("mesh.dummy_index_type must be uint16 or uint32, got %q", c.Mesh.DummyIndexType)
	}
	return nil
}

// ConfigWatcher reloads a config file whenever it changes on disk.
type ConfigWatcher struct {
	path     string
	onChange func(*Config)
	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
	mutex    sync.Mutex
}

// WatchConfig starts watching path. The directory is watched rather than
// the file so editors that replace the file on save are still observed.
// Each successful reload re-applies the log configuration and calls onChange.
func WatchConfig(path string, onChange func(*Config)) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	cw := &ConfigWatcher{
		path:     abs,
		onChange: onChange,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.start()
	return cw, nil
}

func (cw *ConfigWatcher) start() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				LogWarn("config reload failed: %s", err.Error())
				continue
			}
			if err := ConfigureLogging(cfg.Log); err != nil {
				LogWarn("config reload: %s", err.Error())
			}
			LogInfo("configuration reloaded from %s", cw.path)
			if cw.onChange != nil {
				cw.onChange(cfg)
			}
		case err, ok := <-cw.fsnotify.Errors:
			if !ok {
				return
			}
			LogError("config watcher: %s", err.Error())
		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) Close() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	if cw.isClosed {
		return errors.New("config watcher already closed")
	}
	cw.isClosed = true
	close(cw.done)
	err := cw.fsnotify.Close()
	cw.wg.Wait()
	return err
}
