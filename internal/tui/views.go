// internal/tui/views.go
//
// Rendering for every screen state. Screens are plain text from the texts
// library centered in the window; the trial screen shows either the letter
// or the fixation cross, exactly as the engine's frame dictates.

package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	letterStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(1, 4).
			Border(lipgloss.HiddenBorder())

	fixationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			Padding(1, 4).
			Border(lipgloss.HiddenBorder())

	screenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD")).
			Padding(1, 2).
			MaxWidth(72)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			Padding(1, 2)
)

// View renders the current state to a string.
func (a *App) View() string {
	switch a.state {
	case stateParticipant:
		return a.center(a.renderParticipant())
	case stateWelcome:
		return a.centerScreen(a.renderScreen("welcome", nil))
	case stateConsent:
		return a.centerScreen(a.renderScreen("consent", nil))
	case stateInstructions:
		return a.centerScreen(a.renderScreen("instructions", map[string]string{
			"N": a.firstLoadLabel(),
		}))
	case statePracticeIntro:
		return a.centerScreen(a.renderScreen("practice_intro", map[string]string{
			"N": "2",
		}))
	case statePractice, stateBlock:
		return a.renderTrial()
	case statePracticeFeedback:
		return a.centerScreen(a.renderPracticeFeedback())
	case stateBlockIntro:
		block := a.blocks[a.blockPos]
		return a.centerScreen(a.renderScreen("block_intro", map[string]string{
			"BLOCK": strconv.Itoa(block.Index),
			"N":     strconv.Itoa(block.NBack),
		}))
	case stateBlockBreak:
		return a.centerScreen(a.renderBreak())
	case stateThanks:
		return a.centerScreen(a.renderScreen("thanks", nil))
	case stateError:
		return a.center(errorStyle.Render(fmt.Sprintf("Something went wrong:\n\n%v\n\nPress any key to exit.", a.err)))
	}
	return ""
}

func (a *App) renderParticipant() string {
	lines := []string{
		"Letter N-back task",
		"",
		"Enter the participant ID and press ENTER.",
		"",
		a.nameInput.View(),
	}
	body := screenStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, body, hintStyle.Render("Esc to quit"))
}

// renderTrial asks the engine what belongs on screen right now.
func (a *App) renderTrial() string {
	frame := a.engine.Frame(a.now())
	if frame.Fixation {
		return a.center(fixationStyle.Render("+"))
	}
	return a.center(letterStyle.Render(frame.Stimulus))
}

func (a *App) renderPracticeFeedback() string {
	acc := strconv.Itoa(int(100 * a.practiceRes.Accuracy()))
	screen := "practice_passed"
	if !a.ses.PracticePassed(a.practiceRes) {
		screen = "practice_repeat"
	}
	return a.renderScreen(screen, map[string]string{
		"ACC": acc,
		"N":   "2",
	})
}

// renderBreak picks the load-switch wording when the next block changes the
// N-back level, otherwise the plain between-block break.
func (a *App) renderBreak() string {
	finished := a.blocks[a.blockPos-1]
	next := a.blocks[a.blockPos]
	if next.NBack != finished.NBack {
		return a.renderScreen("load_switch", map[string]string{
			"N": strconv.Itoa(next.NBack),
		})
	}
	return a.renderScreen("block_break", map[string]string{
		"BLOCK": strconv.Itoa(finished.Index),
	})
}

func (a *App) firstLoadLabel() string {
	return strconv.Itoa(a.cfg.LoadOrder()[0])
}

func (a *App) centerScreen(text string) string {
	return a.center(screenStyle.Render(text))
}

func (a *App) center(content string) string {
	if a.width <= 0 || a.height <= 0 {
		return content
	}
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
}
