package rag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// Prompt variables every template must declare, and nothing else.
const (
	VarContext   = "context"
	VarUserQuery = "user_query"
)

const defaultTemplate = `
You are an advanced AI assistant.
Your task is to provide a **detailed and explicit** response to the question **based strictly on the information provided in the context below**.
You must not incorporate any information beyond what is given in the context. You must not reference or mention the context explicitly or state that the information is from a source.
Your answer must be **as detailed, comprehensive, and explicit as possible** based solely on the provided context, covering all relevant details.

Context:
{context}

Question:
{user_query}

Instructions:
- Provide a detailed, explicit, and comprehensive answer strictly using the information from the context.
- Do not reference or mention the context or its presence.
- If the context does not contain enough information to answer the question, respond with:
"The information provided from TheBatch is insufficient to fully answer this question."
`

// DefaultPromptTemplate returns the news assistant prompt.
func DefaultPromptTemplate() prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       defaultTemplate,
		InputVariables: []string{VarContext, VarUserQuery},
		TemplateFormat: prompts.TemplateFormatFString,
	}
}

// fstringEscapes drops the escaped braces of an f-string template.
var fstringEscapes = strings.NewReplacer("{{", "", "}}", "")

// validateTemplate checks that tmpl declares exactly {context, user_query}
// and renders with them.
func validateTemplate(tmpl prompts.PromptTemplate) error {
	vars := slices.Clone(tmpl.InputVariables)
	slices.Sort(vars)
	vars = slices.Compact(vars)
	if !slices.Equal(vars, []string{VarContext, VarUserQuery}) {
		return fmt.Errorf("prompt template input variables must be (%s, %s), got %v",
			VarContext, VarUserQuery, tmpl.InputVariables)
	}
	if err := prompts.CheckValidTemplate(tmpl.Template, tmpl.TemplateFormat, tmpl.InputVariables); err != nil {
		return fmt.Errorf("prompt template does not render: %w", err)
	}
	// The f-string renderer swallows an unclosed trailing "{name" silently.
	if tmpl.TemplateFormat == prompts.TemplateFormatFString {
		t := fstringEscapes.Replace(tmpl.Template)
		if open := strings.LastIndex(t, "{"); open >= 0 && !strings.Contains(t[open:], "}") {
			return fmt.Errorf("prompt template has an unclosed %q", t[open:])
		}
	}
	return nil
}
