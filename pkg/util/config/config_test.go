package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

func TestRead(t *testing.T) {
	Reset()
	defer Reset()

	// Read config without setting config file
	{
		err := ReadInConfig()
		require.NoError(t, err)
		assert.Equal(t, 0, len(config))
	}

	// Read config from file
	{
		SetConfigFile("tstdata/ok.json")
		err := ReadInConfig()
		require.NoError(t, err)
		assert.Equal(t, 2, len(config))
	}

	// Read config from yaml file
	{
		SetConfigFile("tstdata/ok.yaml")
		err := ReadInConfig()
		require.NoError(t, err)
		assert.Equal(t, "shell", Get("runtime"))
		assert.Equal(t, 4, Get("max_parallel"))
	}

	// Missing file
	{
		SetConfigFile("tstdata/missing.json")
		err := ReadInConfig()
		require.Error(t, err)
	}

	// Not valid json
	{
		r := strings.NewReader(`{"keystr":"foo","keybool":f`)
		err := ReadConfig(r, FormatJSON)
		require.Error(t, err)
	}

	// Unknown format
	{
		err := ReadConfig(strings.NewReader(`{}`), "toml")
		require.Error(t, err)
	}
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatOf("ferry.yml"))
	assert.Equal(t, FormatYAML, FormatOf("conf/ferry.YAML"))
	assert.Equal(t, FormatJSON, FormatOf("ferry.json"))
	assert.Equal(t, FormatJSON, FormatOf("ferry"))
}

func TestGet(t *testing.T) {
	Reset()
	defer Reset()

	//Empty config
	v := Get("key")
	assert.Nil(t, v)

	config = map[string]interface{}{
		"keyint": 1,
		"keymap": map[string]interface{}{
			"keystr":  "str",
			"keybool": true,
		},
	}
	// Check keyint
	vInt, isInt := Get("keyint").(int)
	require.True(t, isInt)
	assert.Equal(t, 1, vInt)

	// Subpath missing
	v = Get("keyint.sub")
	assert.Nil(t, v)

	// Subpath OK
	vBool, isBool := Get("keymap.keybool").(bool)
	require.True(t, isBool)
	assert.True(t, vBool)

	// Whole config
	assert.Len(t, Get(""), 2)
}

type s struct {
	KeyStr      string        `mapstructure:"keystr"`
	KeyBool     bool          `mapstructure:"keybool"`
	KeyDuration time.Duration `mapstructure:"keyduration"`
	KeyEnv      string        `mapstructure:"keyenv" env:"KEY_ENV"`
}

func TestUnmarshal(t *testing.T) {
	Reset()
	defer Reset()
	config = map[string]interface{}{
		"keyint": 1,
		"keymap": map[string]interface{}{
			"keystr":      "str",
			"keybool":     true,
			"keyduration": "1m30s",
		},
	}

	var v1 s
	err := Unmarshal("keyint", &v1)
	require.Error(t, err)

	var v2 s
	os.Setenv("KEY_ENV", "foo")
	defer os.Unsetenv("KEY_ENV")
	err = Unmarshal("keymap", &v2)
	require.NoError(t, err)
	assert.Equal(t, "str", v2.KeyStr)
	assert.True(t, v2.KeyBool)
	assert.Equal(t, 90*time.Second, v2.KeyDuration)
	assert.Equal(t, "foo", v2.KeyEnv)

	// env.Parse error
	var v3 s
	err = Unmarshal("keynil", v3)
	require.Error(t, err)
}
