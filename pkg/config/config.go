// Package config implements the three-tier configuration lookup of spec
// §4.8: a runtime broadcast override takes precedence over the task's own
// runtime config, which takes precedence over the suite-wide global config.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// TaskRef identifies the task a lookup is performed for.
type TaskRef struct {
	Name      string
	Owner     string
	Host      string
}

// BroadcastLookup is the narrow contract onto the (out of scope) runtime
// broadcast manager: operator-injected per-task overrides.
type BroadcastLookup interface {
	// Get returns (value, true) if skey/key is overridden for task.
	Get(task TaskRef, skey, key string) (interface{}, bool)
}

// TaskConfigLookup is the narrow contract onto a task's own runtime config.
type TaskConfigLookup interface {
	Get(task TaskRef, skey, key string) (interface{}, bool)
}

// GlobalConfig is the suite-wide static configuration (§4.8 tier 3).
type GlobalConfig struct {
	TaskEvents map[string]interface{}            `yaml:"task events"`
	Hosts      map[string]map[string]interface{} `yaml:"hosts"` // key: "owner@host" or "@host"
}

// LoadGlobalConfig reads the global config tier from a YAML file. A missing
// file is not an error: it yields an empty (all-lookups-miss) config, since
// every tier in §4.8 is optional and the probe simply falls through.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	cfg := &GlobalConfig{
		TaskEvents: make(map[string]interface{}),
		Hosts:      make(map[string]map[string]interface{}),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.TaskEvents == nil {
		cfg.TaskEvents = make(map[string]interface{})
	}
	if cfg.Hosts == nil {
		cfg.Hosts = make(map[string]map[string]interface{})
	}
	return cfg, nil
}

// Lookup performs the three-tier probe of spec §4.8.
type Lookup struct {
	Broadcast BroadcastLookup
	TaskConf  TaskConfigLookup
	Global    *GlobalConfig
}

// GetEventsConf probes (1) runtime broadcast "events", (2) task runtime
// config "events", (3) global "task events", returning the first hit or
// def if none match.
func (l *Lookup) GetEventsConf(task TaskRef, key string, def interface{}) interface{} {
	if l.Broadcast != nil {
		if v, ok := l.Broadcast.Get(task, "events", key); ok {
			return v
		}
	}
	if l.TaskConf != nil {
		if v, ok := l.TaskConf.Get(task, "events", key); ok {
			return v
		}
	}
	if l.Global != nil {
		if v, ok := l.Global.TaskEvents[key]; ok {
			return v
		}
	}
	return def
}

// GetHostConf probes (1) runtime broadcast under skey (default "remote"),
// (2) task runtime config under skey, (3) the global host lookup for
// (task.Host, task.Owner).
func (l *Lookup) GetHostConf(task TaskRef, key string, def interface{}, skey string) interface{} {
	if skey == "" {
		skey = "remote"
	}
	if l.Broadcast != nil {
		if v, ok := l.Broadcast.Get(task, skey, key); ok {
			return v
		}
	}
	if l.TaskConf != nil {
		if v, ok := l.TaskConf.Get(task, skey, key); ok {
			return v
		}
	}
	if l.Global != nil {
		for _, hostKey := range hostLookupKeys(task) {
			if section, ok := l.Global.Hosts[hostKey]; ok {
				if v, ok := section[key]; ok {
					return v
				}
			}
		}
	}
	return def
}

// hostLookupKeys returns the candidate global-config section names for a
// task's (owner, host), most specific first.
func hostLookupKeys(task TaskRef) []string {
	var keys []string
	if task.Owner != "" && task.Host != "" {
		keys = append(keys, task.Owner+"@"+task.Host)
	}
	if task.Host != "" {
		keys = append(keys, "@"+task.Host)
	}
	keys = append(keys, "*")
	return keys
}
