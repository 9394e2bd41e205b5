package editor

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

type (
	// KeyBinding binds a key, with modifiers, to a named action. An empty
	// Action unbinds the key.
	KeyBinding struct {
		Key                  string
		Shortcut, Shift, Alt bool
		Action               string
	}

	// KeyEvent is a key press. Name uses the DOM key names: "Space",
	// "ArrowLeft", "Escape", single characters for the rest. Shortcut is
	// Ctrl, or Cmd on macOS.
	KeyEvent struct {
		Name                 string
		Shortcut, Shift, Alt bool
	}
)

// ConfigDirName is the directory under the user config directory where
// custom configuration is read from.
const ConfigDirName = "soliddaw"

//go:embed keybindings.yml
var defaultKeyBindingsYaml []byte

func loadDefaultKeyBindings() []KeyBinding {
	var keyBindings []KeyBinding
	err := yaml.UnmarshalStrict(defaultKeyBindingsYaml, &keyBindings)
	if err != nil {
		panic(fmt.Errorf("failed to unmarshal keybindings: %w", err))
	}
	return keyBindings
}

// LoadCustomKeyBindings reads keybindings.yml from the user config
// directory. Returns nil if there is none.
func LoadCustomKeyBindings() ([]KeyBinding, error) {
	var keyBindings []KeyBinding
	exists, err := ReadCustomConfigYml("keybindings.yml", &keyBindings)
	if !exists {
		return nil, nil
	}
	return keyBindings, err
}

// ReadCustomConfigYml modifies the target argument, i.e. needs a pointer
func ReadCustomConfigYml(filename string, target interface{}) (exists bool, err error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return false, err
	}
	path := filepath.Join(configDir, ConfigDirName, filename)
	bytes, err2 := os.ReadFile(path)
	if err2 != nil {
		return false, err2
	}
	err = yaml.Unmarshal(bytes, target)
	return true, err
}

func defaultKeyBindingMap() map[KeyEvent]string {
	ret := map[KeyEvent]string{}
	bindKeys(ret, loadDefaultKeyBindings())
	return ret
}

func bindKeys(m map[KeyEvent]string, bindings []KeyBinding) {
	for _, kb := range bindings {
		e := KeyEvent{Name: kb.Key, Shortcut: kb.Shortcut, Shift: kb.Shift, Alt: kb.Alt}.normalized()
		if kb.Action == "" { // unbind
			delete(m, e)
		} else {
			m[e] = kb.Action
		}
	}
}

// BindKeys adds bindings on top of the current ones; later bindings of the
// same key win.
func (m *Model) BindKeys(bindings []KeyBinding) { bindKeys(m.keyBindings, bindings) }

// KeyAction returns the action bound to the key event, if any.
func (m *Model) KeyAction(e KeyEvent) (string, bool) {
	action, ok := m.keyBindings[e.normalized()]
	return action, ok
}

// normalized upper-cases single letters, so "z" and "Z" are the same key.
func (e KeyEvent) normalized() KeyEvent {
	if len(e.Name) == 1 {
		e.Name = strings.ToUpper(e.Name)
	}
	return e
}

func (e KeyEvent) String() string {
	var mods []string
	if e.Shortcut {
		mods = append(mods, "Shortcut")
	}
	if e.Shift {
		mods = append(mods, "Shift")
	}
	if e.Alt {
		mods = append(mods, "Alt")
	}
	return strings.Join(append(mods, e.Name), "+")
}
