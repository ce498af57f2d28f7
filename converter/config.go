package converter

import (
	"io/ioutil"
	"path/filepath"
	"runtime"

	"github.com/binzume/mafiaconv/mafia"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds conversion settings. Zero values are replaced by Resolve.
type Config struct {
	// DataPath is the game data root. Textures are read from DataPath/maps.
	DataPath string `yaml:"dataPath"`

	Scale      float32 `yaml:"scale"`
	FPS        float32 `yaml:"fps"`
	ExportLODs bool    `yaml:"exportLODs"`
	ForceUnlit bool    `yaml:"unlit"`

	Charset            string `yaml:"charset"`
	SkipAlphaRemainder bool   `yaml:"skipAlphaRemainder"`

	TextureScale           float32 `yaml:"textureScale"`
	TextureResolutionLimit int     `yaml:"textureResolutionLimit"`

	Workers int `yaml:"workers"`

	MaterialSettings map[string]*MaterialSetting `yaml:"materialSettings"`
}

func ParseConfig(data []byte) (*Config, error) {
	var conf Config
	if err := yaml.UnmarshalStrict(data, &conf); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return &conf, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return conf, nil
}

// Resolve fills unset fields with defaults.
func (c *Config) Resolve() {
	if c.Scale == 0 {
		c.Scale = 1
	}
	if c.FPS <= 0 {
		c.FPS = 25
	}
	if c.TextureScale <= 0 {
		c.TextureScale = 1
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

func (c *Config) DecoderOptions() (*mafia.Options, error) {
	opts := &mafia.Options{}
	if c.Charset != "" {
		cm, err := mafia.LookupCharset(c.Charset)
		if err != nil {
			return nil, err
		}
		opts.Charset = cm
	}
	if c.SkipAlphaRemainder {
		opts.AlphaTexture = mafia.AlphaTextureSkipRemainder
	}
	return opts, nil
}

func (c *Config) ConverterOptions() *FourDSToGLTFOption {
	opts := &FourDSToGLTFOption{
		Scale:                  c.Scale,
		ForceUnlit:             c.ForceUnlit,
		ExportLODs:             c.ExportLODs,
		TextureScale:           c.TextureScale,
		TextureResolutionLimit: c.TextureResolutionLimit,
		MaterialSettings:       c.MaterialSettings,
	}
	if c.DataPath != "" {
		opts.TextureDir = filepath.Join(c.DataPath, "maps")
	}
	return opts
}

func (c *Config) AnimationOptions(name string) *AnimationOption {
	return &AnimationOption{Name: name, FPS: c.FPS, Scale: c.Scale}
}
