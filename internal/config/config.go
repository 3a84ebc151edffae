package config

import (
    "fmt"
    "os"
    "strconv"
    "time"

    "gopkg.in/yaml.v3"
)

// OnTickError policies for the simulation clock.
const (
    TickErrorStop = "stop" // halt the session on the first failed tick
    TickErrorLog  = "log"  // log and keep ticking
)

type Config struct {
    HTTPAddr    string `yaml:"http_addr"`
    DatabaseURL string `yaml:"database_url"`
    RedisURL    string `yaml:"redis_url"`
    AmapKey     string `yaml:"amap_key"`

    ScenarioPath string `yaml:"scenario_path"`

    Sim struct {
        TickInterval      time.Duration `yaml:"tick_interval"`
        StepSeconds       int64         `yaml:"step_seconds"`
        DwellSeconds      int64         `yaml:"dwell_seconds"`
        NominalSpeed      float64       `yaml:"nominal_speed"`
        BacklogCap        int           `yaml:"backlog_cap"`
        GenProbability    float64       `yaml:"gen_probability"`
        BurstSize         int           `yaml:"burst_size"`
        OnTickError       string        `yaml:"on_tick_error"`
        TelemetryInterval time.Duration `yaml:"telemetry_interval"`
    } `yaml:"sim"`

    Dispatch struct {
        UseWeighted      bool    `yaml:"use_weighted"`
        WeightTime       float64 `yaml:"weight_time"`
        WeightWastedLoad float64 `yaml:"weight_wasted_load"`
        WeightWastedIdle float64 `yaml:"weight_wasted_idle"`
    } `yaml:"dispatch"`

    Route struct {
        PrewarmQPS     float64 `yaml:"prewarm_qps"`
        PrewarmOnStart bool    `yaml:"prewarm_on_start"`
    } `yaml:"route"`
}

func Default() Config {
    var c Config
    c.HTTPAddr = ":8080"
    c.Sim.TickInterval = time.Second
    c.Sim.StepSeconds = 60
    c.Sim.DwellSeconds = 300
    c.Sim.NominalSpeed = 10
    c.Sim.BacklogCap = 40
    c.Sim.GenProbability = 0.2
    c.Sim.BurstSize = 10
    c.Sim.OnTickError = TickErrorStop
    c.Sim.TelemetryInterval = 5 * time.Second
    c.Dispatch.WeightTime = 1
    c.Dispatch.WeightWastedLoad = 1
    c.Dispatch.WeightWastedIdle = 1
    c.Route.PrewarmQPS = 3
    return c
}

// Load reads the YAML file at path (when it exists) over the defaults,
// then applies environment overrides on top.
func Load(path string) (Config, error) {
    c := Default()
    if path != "" {
        data, err := os.ReadFile(path)
        if err != nil {
            if !os.IsNotExist(err) {
                return c, fmt.Errorf("config: read %s: %w", path, err)
            }
        } else if err := yaml.Unmarshal(data, &c); err != nil {
            return c, fmt.Errorf("config: parse %s: %w", path, err)
        }
    }
    c.applyEnv()
    return c, c.validate()
}

func (c *Config) applyEnv() {
    if v := os.Getenv("HTTP_ADDR"); v != "" {
        c.HTTPAddr = v
    }
    if v := os.Getenv("PORT"); v != "" {
        c.HTTPAddr = ":" + v
    }
    if v := os.Getenv("DATABASE_URL"); v != "" {
        c.DatabaseURL = v
    }
    if v := os.Getenv("REDIS_URL"); v != "" {
        c.RedisURL = v
    }
    if v := os.Getenv("AMAP_KEY"); v != "" {
        c.AmapKey = v
    }
    if v := os.Getenv("SCENARIO_PATH"); v != "" {
        c.ScenarioPath = v
    }
    if v := os.Getenv("SIM_TICK_INTERVAL"); v != "" {
        if d, err := time.ParseDuration(v); err == nil {
            c.Sim.TickInterval = d
        }
    }
    if v := os.Getenv("SIM_ON_TICK_ERROR"); v != "" {
        c.Sim.OnTickError = v
    }
    if v := os.Getenv("DISPATCH_USE_WEIGHTED"); v != "" {
        if b, err := strconv.ParseBool(v); err == nil {
            c.Dispatch.UseWeighted = b
        }
    }
}

func (c *Config) validate() error {
    if c.Sim.TickInterval <= 0 {
        return fmt.Errorf("config: tick_interval must be positive")
    }
    if c.Sim.StepSeconds <= 0 {
        return fmt.Errorf("config: step_seconds must be positive")
    }
    if c.Sim.NominalSpeed <= 0 {
        return fmt.Errorf("config: nominal_speed must be positive")
    }
    if c.Sim.GenProbability < 0 || c.Sim.GenProbability > 1 {
        return fmt.Errorf("config: gen_probability must be in [0,1]")
    }
    switch c.Sim.OnTickError {
    case TickErrorStop, TickErrorLog:
    default:
        return fmt.Errorf("config: on_tick_error must be %q or %q", TickErrorStop, TickErrorLog)
    }
    return nil
}
