package device

import (
  "fmt"
  "net"
  "strings"

  "github.com/rs/zerolog"
  "github.com/spf13/viper"
)

const (
  SectionProgram = "program"

  FieldLogLevel = "loglevel"
  FieldLogFile = "logfile"
  FieldPlugins = "plugins"
  FieldAddress = "ble_address"
  FieldName = "device_name"
  FieldModel = "device_model"
  FieldAddressType = "address_type"
)

// Config is the immutable configuration of one monitored device, loaded once from its settings
// file.
type Config struct {
  Type string
  Name string
  Address net.HardwareAddr
  Model string
  AddressType AddressType

  LogLevel zerolog.Level
  LogFile string
  Consumers []string

  settings map[string]string
}

func (c Config) String() string {
  return fmt.Sprintf("%s[name=%q, addr=%v, model=%q, addrType=%v]",
    c.Type, c.Name, c.Address, c.Model, c.AddressType)
}

// Setting returns the raw value of `section.key` from the settings file, or "" when absent.
func (c Config) Setting(key string) string {
  return c.settings[strings.ToLower(key)]
}

func (c Config) SettingOr(key, fallback string) string {
  if v := c.Setting(key); v != "" {
    return v
  }

  return fallback
}

// LoadConfig reads the INI settings file at `path` and extracts the device parameters from the
// section named by the descriptor.
func LoadConfig(path string, d Descriptor) (Config, error) {
  v := viper.New()
  v.SetConfigFile(path)
  v.SetConfigType("ini")

  if err := v.ReadInConfig(); err != nil {
    return Config{}, fmt.Errorf("%w: failed to read settings file %q: %v", ErrConfiguration, path, err)
  }

  return configFromViper(v, d)
}

func configFromViper(v *viper.Viper, d Descriptor) (cfg Config, err error) {
  v.SetDefault(SectionProgram + "." + FieldLogLevel, "info")

  cfg.Type = d.Type
  cfg.settings = make(map[string]string)

  for _, key := range v.AllKeys() {
    cfg.settings[key] = v.GetString(key)
  }

  section := strings.ToLower(d.Section)
  get := func(field string) string {
    return strings.TrimSpace(v.GetString(section + "." + field))
  }

  level, err := zerolog.ParseLevel(strings.ToLower(v.GetString(SectionProgram + "." + FieldLogLevel)))
  if err != nil {
    return cfg, fmt.Errorf("%w: invalid log level: %v", ErrConfiguration, err)
  }

  cfg.LogLevel = level
  cfg.LogFile = strings.TrimSpace(v.GetString(SectionProgram + "." + FieldLogFile))

  for _, name := range strings.Split(v.GetString(SectionProgram + "." + FieldPlugins), ",") {
    if name = strings.TrimSpace(name); name != "" {
      cfg.Consumers = append(cfg.Consumers, name)
    }
  }

  if cfg.Name = get(FieldName); cfg.Name == "" {
    return cfg, fmt.Errorf("%w: [%s] %s is required", ErrConfiguration, d.Section, FieldName)
  }

  addr, err := net.ParseMAC(get(FieldAddress))
  if err != nil {
    return cfg, fmt.Errorf("%w: [%s] invalid %s: %v", ErrConfiguration, d.Section, FieldAddress, err)
  }

  cfg.Address = addr
  cfg.Model = get(FieldModel)
  cfg.AddressType = AddressTypeForModel(cfg.Model)

  if raw := get(FieldAddressType); raw != "" {
    if cfg.AddressType, err = ParseAddressType(raw); err != nil {
      return cfg, err
    }
  }

  return cfg, nil
}
