// internal/analysis/promptbuilder/builder_test.go
package promptbuilder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

// ==========================
// User Prompt Tests
// ==========================

func TestUserPrompt_OverviewAndTaskOnly(t *testing.T) {
	got := NewBasicBuilder().UserPrompt(PromptInput{
		AppOverview: "Fitness app",
		UserTask:    "log workout",
	})

	assert.Equal(t, "I have an iOS app about: Fitness app\nThe users's task in this app view is about: log workout.", got)
}

func TestUserPrompt_Sections(t *testing.T) {
	const base = "I have an iOS app about: Fitness app\nThe users's task in this app view is about: log workout."
	code := "struct WorkoutView: View {}"

	tests := []struct {
		name string
		p PromptInput
		want string
	}{
		{
			name: "screenshot note appended",
			p: PromptInput{AppOverview: "Fitness app", UserTask: "log workout", HasImage: true},
			want: base + "\nA screenshot of the app view is provided.",
		},
		{
			name: "whitespace-only source code is absent",
			p: PromptInput{AppOverview: "Fitness app", UserTask: "log workout", SourceCode: strPtr(" \n ")},
			want: base,
		},
		{
			name: "empty source code is absent",
			p: PromptInput{AppOverview: "Fitness app", UserTask: "log workout", SourceCode: strPtr("")},
			want: base,
		},
		{
			name: "source code block keeps raw code",
			p: PromptInput{AppOverview: "Fitness app", UserTask: "log workout", SourceCode: strPtr("  " + code + "\n")},
			want: base + sourceCodePreamble + "  " + code + "\n",
		},
		{
			name: "screenshot precedes source code",
			p: PromptInput{AppOverview: "Fitness app", UserTask: "log workout", SourceCode: strPtr(code), HasImage: true},
			want: base + "\nA screenshot of the app view is provided." + sourceCodePreamble + code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewBasicBuilder().UserPrompt(tt.p))
		})
	}
}

func TestUserPrompt_Deterministic(t *testing.T) {
	p := PromptInput{AppOverview: "Transit", UserTask: "find departures", SourceCode: strPtr("let x = 1"), HasImage: true}
	b := NewBasicBuilder()

	first := b.UserPrompt(p)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.UserPrompt(p))
	}
}

func TestUserPrompt_SourceCodePreamble(t *testing.T) {
	got := NewBasicBuilder().UserPrompt(PromptInput{AppOverview: "A", UserTask: "B", SourceCode: strPtr("code")})

	assert.True(t, strings.HasSuffix(got, "\n\ncode"))
	assert.Contains(t, got, "\nBelow is the incomplete SwiftUI code for the app view.\n")
	assert.Contains(t, got, "It may also include additional components like subviews, models, or preview code.")
}

// ==========================
// System Prompt Tests
// ==========================

func TestSystemPrompt(t *testing.T) {
	b := NewBasicBuilder()

	got := b.SystemPrompt()
	assert.Equal(t, got, b.SystemPrompt())
	assert.True(t, strings.HasPrefix(got, "You are a UI/UX expert for mobile apps."))
	assert.Contains(t, got, "MUST not use technical terminology")
	assert.Len(t, strings.Split(got, "\n"), 5)
}

func TestHasSourceCode(t *testing.T) {
	assert.False(t, HasSourceCode(nil))
	assert.False(t, HasSourceCode(strPtr("\t \n")))
	assert.True(t, HasSourceCode(strPtr(" a ")))
}
