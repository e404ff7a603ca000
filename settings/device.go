package settings

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"go.viam.com/depthcam/dcmode"
)

// DeviceSettings bundles everything needed to run one device.
type DeviceSettings struct {
	Config  ConfigSettings  `json:"config"`
	Color   ColorSettings   `json:"color"`
	Filters FiltersSettings `json:"filters"`
	Data    DataSettings    `json:"data"`
	Delay   DelaySettings   `json:"delay"`
}

// DefaultDeviceSettings returns the defaults of a device family for local display.
func DefaultDeviceSettings(dt dcmode.DeviceType) DeviceSettings {
	return DeviceSettings{
		Config:  DefaultConfigSettings(dt),
		Color:   DefaultColorSettingsFor(dt),
		Filters: DefaultFiltersSettings(),
		Data:    LocalProfile(),
	}
}

// Validate checks every part of the bundle.
func (ds *DeviceSettings) Validate(path string) ([]string, error) {
	ignored, err := ds.Config.Validate(path + ".config")
	if err != nil {
		return nil, err
	}
	filtersIgnored, err := ds.Filters.Validate(path + ".filters")
	if err != nil {
		return nil, err
	}
	if ds.Delay.DelayMs < 0 {
		return nil, errors.Errorf("%s.delay: negative delay_ms %d", path, ds.Delay.DelayMs)
	}
	if rate := ds.Data.Compression.JPEGCompressionRate; rate < 0 || rate > 100 {
		return nil, errors.Errorf("%s.data.compression: jpeg_compression_rate %d out of [0,100]", path, rate)
	}
	return append(ignored, filtersIgnored...), nil
}

// ToString serializes any settings value as indented JSON.
func ToString(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "cannot serialize settings")
	}
	return string(data), nil
}

// FromString fills dst from a JSON text produced by ToString. Missing keys keep the values
// already in dst.
func FromString(text string, dst interface{}) error {
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return errors.Wrap(err, "cannot parse settings")
	}
	return nil
}

// Decode fills dst from loosely typed attributes, such as a parsed YAML or JSON document.
func Decode(attrs map[string]interface{}, dst interface{}) error {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		Metadata:         &md,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attrs); err != nil {
		return errors.Wrap(err, "cannot decode settings")
	}
	if len(md.Unused) > 0 {
		return errors.Errorf("unknown settings keys %v", md.Unused)
	}
	return nil
}

// ApplyOverrides applies "path.to.key=value" strings to the struct pointed by dst. Keys are the
// json names of the fields.
func ApplyOverrides(dst interface{}, overrides []string) error {
	root := reflect.ValueOf(dst)
	if root.Kind() != reflect.Ptr || root.Elem().Kind() != reflect.Struct {
		return errors.Errorf("expected a pointer to a struct, got %T", dst)
	}
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return errors.Errorf("override %q is not of the form key=value", o)
		}
		key = strings.TrimSpace(key)
		field, err := lookupField(root.Elem(), strings.Split(key, "."))
		if err != nil {
			return errors.Wrapf(err, "override %q", key)
		}
		if err := setField(field, strings.TrimSpace(value)); err != nil {
			return errors.Wrapf(err, "override %q", key)
		}
	}
	return nil
}

func lookupField(v reflect.Value, path []string) (reflect.Value, error) {
	for _, part := range path {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("%q is not a group", part)
		}
		found := false
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			if name == part {
				v = v.Field(i)
				found = true
				break
			}
		}
		if !found {
			return reflect.Value{}, errors.Errorf("unknown key %q", part)
		}
	}
	return v, nil
}

func setField(field reflect.Value, value string) error {
	if field.CanAddr() {
		if tu, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return tu.UnmarshalText([]byte(value))
		}
	}
	//nolint:exhaustive
	switch field.Kind() {
	case reflect.Bool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		if field.OverflowInt(i) {
			return errors.Errorf("%d overflows %s", i, field.Type())
		}
		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := cast.ToUint64E(value)
		if err != nil {
			return err
		}
		if field.OverflowUint(u) {
			return errors.Errorf("%d overflows %s", u, field.Type())
		}
		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.String:
		field.SetString(value)
	default:
		return errors.Errorf("cannot override a %s", field.Kind())
	}
	return nil
}

// Schema returns the JSON schema of DeviceSettings.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&DeviceSettings{})
}
