package conversation

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var est = CharEstimator{CharsPerToken: 4}

func snapshot(url, body string) *dom.Snapshot {
	return &dom.Snapshot{URL: url, Text: body, Count: strings.Count(body, "\n") + 1}
}

func pinnedCost(task string) int {
	return est.Estimate(SystemPrompt) + est.Estimate("Задача: "+task)
}

func TestManager_PinnedEntries(t *testing.T) {
	m := NewManager(Config{Budget: 100000}, est, zaptest.NewLogger(t))
	m.AddTask("найди кнопку входа")
	m.AddObservation(snapshot("https://example.com", "[0][html[1]/body[1]/a[1]]<a>Войти</a>"))

	entries := m.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, RoleSystem, entries[0].Role)
	assert.Equal(t, SystemPrompt, entries[0].Content)
	assert.Equal(t, RoleTask, entries[1].Role)
	assert.Equal(t, "Задача: найди кнопку входа", entries[1].Content)
	assert.Equal(t, KindSnapshot, entries[2].Kind)
	assert.Contains(t, entries[2].Content, "https://example.com")
	assert.Contains(t, entries[2].Content, "<a>Войти</a>")

	for _, e := range entries {
		assert.Equal(t, est.Estimate(e.Content), e.Tokens)
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestManager_LowBudgetKeepsOnlyNewestObservation(t *testing.T) {
	task := "открой профиль"
	obs := func(i int) *dom.Snapshot {
		return snapshot(fmt.Sprintf("https://site/%d", i), strings.Repeat(fmt.Sprintf("элемент %d ", i), 20))
	}
	oneObs := est.Estimate(formatSnapshot(obs(1)))

	m := NewManager(Config{Budget: pinnedCost(task) + oneObs + oneObs/2}, est, zaptest.NewLogger(t))
	m.AddTask(task)

	for i := 1; i <= 3; i++ {
		m.AddObservation(obs(i))
		entries := m.Entries()
		require.Len(t, entries, 3, "после наблюдения %d", i)
		assert.Contains(t, entries[2].Content, fmt.Sprintf("https://site/%d", i))
		assert.LessOrEqual(t, m.TotalTokens(), m.Budget())
	}
}

func TestManager_EvictsOldestFirst(t *testing.T) {
	task := "t"
	// каждая запись о переходе стоит 7 токенов
	m := NewManager(Config{Budget: pinnedCost(task) + 21}, est, nil)
	m.AddTask(task)

	m.AddNavigation("https://a")
	m.AddNavigation("https://bb")
	m.AddNavigation("https://c")
	m.AddNavigation("https://dd")

	entries := m.Entries()
	require.Len(t, entries, 5)
	assert.Contains(t, entries[2].Content, "https://bb")
	assert.Contains(t, entries[3].Content, "https://c")
	assert.Contains(t, entries[4].Content, "https://dd")
}

func TestManager_TruncatesOversizedNewestEntry(t *testing.T) {
	task := "t"
	budget := pinnedCost(task) + 10
	m := NewManager(Config{Budget: budget}, est, nil)
	m.AddTask(task)

	m.AddObservation(snapshot("https://big", strings.Repeat("x", 1000)))

	entries := m.Entries()
	require.Len(t, entries, 3)
	assert.True(t, strings.HasSuffix(entries[2].Content, truncatedMarker))
	assert.LessOrEqual(t, m.TotalTokens(), budget)
}

func TestManager_BudgetInvariantUnderRandomAdditions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	task := "проверка"

	for run := 0; run < 20; run++ {
		budget := pinnedCost(task) + 1 + rng.Intn(200)
		m := NewManager(Config{Budget: budget, SummarizeHistory: run%2 == 0}, est, nil)
		m.AddTask(task)

		for i := 0; i < 50; i++ {
			text := strings.Repeat("z", rng.Intn(600))
			switch rng.Intn(3) {
			case 0:
				m.AddObservation(snapshot("https://r", text))
			case 1:
				m.AddActionResult(action.Action{Type: action.Wait, Seconds: 1}, action.Result{Success: true, Message: text})
			case 2:
				m.AddNavigation("https://r/" + text)
			}

			entries := m.Entries()
			require.GreaterOrEqual(t, len(entries), 2)
			assert.Equal(t, RoleSystem, entries[0].Role)
			assert.Equal(t, RoleTask, entries[1].Role)
			assert.LessOrEqual(t, m.TotalTokens(), budget)
		}
	}
}

func TestManager_ActionResultEntry(t *testing.T) {
	m := NewManager(Config{Budget: 100000}, est, nil)
	m.AddTask("t")

	m.AddActionResult(
		action.Action{Type: action.Extract, Goal: "links"},
		action.Result{Success: true, Message: "Извлечено: ссылок 1", Data: map[string]any{"links": []string{"/a"}}},
	)
	m.AddActionResult(
		action.Action{Type: action.Click, XPath: "html[1]/body[1]/a[9]"},
		action.Result{Success: false, Error: "элемент не найден"},
	)

	entries := m.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, KindResult, entries[2].Kind)
	assert.Contains(t, entries[2].Content, `extract_content("links")`)
	assert.Contains(t, entries[2].Content, `"links":["/a"]`)
	assert.Contains(t, entries[3].Content, "Результат: ошибка")
	assert.Contains(t, entries[3].Content, "элемент не найден")
}

func TestManager_ObservationFailureEntry(t *testing.T) {
	m := NewManager(Config{Budget: 100000, SummarizeHistory: true}, est, nil)
	m.AddTask("t")
	m.AddObservationFailure("Execution context was destroyed")

	entries := m.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, KindResult, entries[2].Kind)
	assert.Equal(t, RoleObservation, entries[2].Role)
	assert.Equal(t, "Снимок страницы не получен: Execution context was destroyed", entries[2].Content)
}

func TestManager_SummarizedHistoryPrecedesObservation(t *testing.T) {
	m := NewManager(Config{Budget: 100000, SummarizeHistory: true}, est, nil)
	m.AddTask("t")

	m.AddObservation(snapshot("https://one", "a"))
	m.AddActionResult(action.Action{Type: action.Click, XPath: "a[1]"}, action.Result{Success: true, Message: "ok"})
	m.AddObservation(snapshot("https://two", "b"))
	m.AddActionResult(action.Action{Type: action.Scroll, Direction: "down"}, action.Result{Success: true})
	m.AddObservation(snapshot("https://three", "c"))

	entries := m.Entries()
	var kinds []Kind
	for _, e := range entries[2:] {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []Kind{KindSnapshot, KindSnapshot, KindSummary, KindSnapshot}, kinds)

	summary := entries[4].Content
	assert.Contains(t, summary, "1. click_element(a[1]): успешно (ok)")
	assert.Contains(t, summary, "2. scroll(down, 0): успешно")
}

func TestManager_NewTaskResetsTaskEntry(t *testing.T) {
	m := NewManager(Config{Budget: 100000}, est, nil)
	m.AddTask("первая")
	m.AddTask("вторая")

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Задача: вторая", entries[1].Content)
}

func TestCharEstimator(t *testing.T) {
	assert.Equal(t, 0, est.Estimate(""))
	assert.Equal(t, 1, est.Estimate("abc"))
	assert.Equal(t, 1, est.Estimate("абвг"))
	assert.Equal(t, 2, est.Estimate("abcde"))
	assert.Equal(t, 2, CharEstimator{}.Estimate("abcde"))
}
