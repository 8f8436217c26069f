// internal/analysis/promptbuilder/builder.go
package promptbuilder

import (
	"fmt"
	"strings"
)

// PromptInput is the subset of an analysis input that shapes the prompt.
type PromptInput struct {
	AppOverview string
	UserTask    string
	SourceCode  *string
	HasImage    bool
}

// Builder produces the system and user messages for a model request.
type Builder interface {
	SystemPrompt() string
	UserPrompt(p PromptInput) string
}

const systemPrompt = `You are a UI/UX expert for mobile apps.
Your task is to identify usability issues with the information you get for an app view.
An example of a usability issue could be: "Lack of visual feedback on user interactions."
Respond using app domain language, you MUST not use technical terminology or mention code details.
Enumerate the problems identified; add an empty paragraph after each enumeration; no preceding or following text.`

const (
	userPromptFormat = "I have an iOS app about: %s\nThe users's task in this app view is about: %s."

	screenshotSection = "\nA screenshot of the app view is provided."

	sourceCodePreamble = "\nBelow is the incomplete SwiftUI code for the app view.\n" +
		"This code includes the view's user interface and a view model for logic handling.\n" +
		"It may also include additional components like subviews, models, or preview code.\n\n"
)

// BasicBuilder is the stateless default Builder.
type BasicBuilder struct{}

func NewBasicBuilder() BasicBuilder {
	return BasicBuilder{}
}

func (BasicBuilder) SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders overview and task, then the screenshot note, then the
// source code block. Sections are appended in that order only.
func (BasicBuilder) UserPrompt(p PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, userPromptFormat, p.AppOverview, p.UserTask)

	if p.HasImage {
		b.WriteString(screenshotSection)
	}

	if HasSourceCode(p.SourceCode) {
		b.WriteString(sourceCodePreamble)
		b.WriteString(*p.SourceCode)
	}

	return b.String()
}

// HasSourceCode reports whether code holds anything but whitespace.
func HasSourceCode(code *string) bool {
	return code != nil && collapseWhitespace(*code) != ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
