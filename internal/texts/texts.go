// internal/texts/texts.go
//
// Participant-facing screen texts. Every screen has a built-in default; a
// file named <screen>.txt in the texts directory overrides it, so labs can
// translate or reword instructions without rebuilding the binary.
// Placeholders of the form {{NAME}} are filled at render time.

package texts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Screen identifiers. Each maps to one override file name.
const (
	ScreenWelcome        = "welcome"
	ScreenConsent        = "consent"
	ScreenInstructions   = "instructions"
	ScreenPracticeIntro  = "practice_intro"
	ScreenPracticePassed = "practice_passed"
	ScreenPracticeRepeat = "practice_repeat"
	ScreenBlockIntro     = "block_intro"
	ScreenBlockBreak     = "block_break"
	ScreenLoadSwitch     = "load_switch"
	ScreenThanks         = "thanks"
)

var defaults = map[string]string{
	ScreenWelcome: `Welcome to the letter memory task.

Press SPACE to continue.`,

	ScreenConsent: `Before we begin, please confirm that you agree to take part
and that your responses may be recorded for research purposes.

Press SPACE to agree and continue, or ESC to leave.`,

	ScreenInstructions: `You will see a stream of letters, one at a time.

Press SPACE whenever the letter on screen is the same as the letter
shown {{N}} positions earlier. Do not press anything otherwise.

Respond as quickly and as accurately as you can.

Press SPACE to continue.`,

	ScreenPracticeIntro: `First, a short practice round ({{N}}-back).

You need at least {{CRIT}}% correct to move on.

Press SPACE to start the practice.`,

	ScreenPracticePassed: `Well done! You scored {{ACC}}% in the practice round.

The main task starts next.

Press SPACE to continue.`,

	ScreenPracticeRepeat: `You scored {{ACC}}% in the practice round.
That is below the {{CRIT}}% needed, so we will practice once more.

Remember: press SPACE only when the letter matches the one
shown {{N}} positions earlier.

Press SPACE to retry.`,

	ScreenBlockIntro: `Block {{BLOCK}} of {{TOTAL}}: {{N}}-back.

Press SPACE when the letter matches the one shown {{N}} positions earlier.

Press SPACE when you are ready.`,

	ScreenBlockBreak: `Block {{BLOCK}} of {{TOTAL}} complete.

Take a short break if you need one.

Press SPACE to continue.`,

	ScreenLoadSwitch: `The rule changes now.

From here on, press SPACE when the letter matches the one
shown {{N}} positions earlier.

Press SPACE when you are ready.`,

	ScreenThanks: `That is the end of the task. Thank you!

Your data has been saved.

Press SPACE to finish.`,
}

// Library resolves screen texts, preferring override files in dir.
type Library struct {
	dir string
}

// NewLibrary returns a library reading overrides from dir. An empty dir
// serves built-ins only.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Get returns the raw text for a screen, with overrides applied. Unknown
// screens without an override file are an error.
func (l *Library) Get(screen string) (string, error) {
	if l != nil && l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, screen+".txt"))
		if err == nil {
			return strings.TrimRight(string(data), "\n"), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("texts: read override for %s: %w", screen, err)
		}
	}
	text, ok := defaults[screen]
	if !ok {
		return "", fmt.Errorf("texts: unknown screen %q", screen)
	}
	return text, nil
}

// Render resolves a screen and substitutes {{NAME}} placeholders from vars.
// Placeholders without a binding are left in place so a missing value is
// visible on screen instead of silently blank.
func (l *Library) Render(screen string, vars map[string]string) (string, error) {
	text, err := l.Get(screen)
	if err != nil {
		return "", err
	}
	return Substitute(text, vars), nil
}

// Substitute replaces each {{NAME}} occurrence with its binding.
func Substitute(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*len(vars))
	for name, value := range vars {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
