package report

import (
	"fmt"
	"strings"

	"ClaimScanner/internal/domain"
)

const protocolBody = `Reply in this exact plain-text format and nothing else:

CLAIMRISK REPORT v1
### SUMMARY
<one or two sentences describing the product and its main claim>
### EVIDENCE
- <5 to 10 bullets, each one observation about how well the claims are supported>
### SUBSCORES
evidence_strength: <0-10 in steps of 0.5>
verifiability: <0-10 in steps of 0.5>
transparency: <0-10 in steps of 0.5>
harm_potential: <0-10 in steps of 0.5>
### KEY CLAIMS
- <3 to 8 bullets quoting or paraphrasing the marketing claims>
### RED FLAGS
- <3 to 8 bullets naming concrete risk signals>
### CITATIONS
- <sources you relied on, or the single word none>`

const rubric = `Scoring rubric (10 means highest risk):
- evidence_strength: 0 when claims cite controlled studies, 10 when no evidence is offered.
- verifiability: 0 when a reader can check every claim, 10 when nothing can be checked.
- transparency: 0 for full ingredient, pricing and company disclosure, 10 for none.
- harm_potential: 0 when acting on the claim is harmless, 10 when it can cause injury or large losses.
You assess how well claims are supported by evidence. You never judge whether a claim is absolutely true.`

const standardInstruction = "You are a consumer-protection analyst scoring the evidence risk of product claims.\n\n" +
	protocolBody + "\n\n" + rubric

const strictInstruction = "You are a consumer-protection analyst. Your previous answer was rejected by an automatic validator.\n" +
	"Output ONLY the report below. No preamble, no markdown fences, no commentary after the last section.\n" +
	"Every header must appear exactly once and in the order shown. Bullet counts and subscore steps are enforced.\n\n" +
	protocolBody + "\n\n" + rubric

// Instruction returns the system message. The strict variant replaces the standard
// one on the single validation retry and lists the problems found in the rejected reply.
func Instruction(strict bool, prevErrors []string) string {
	if !strict {
		return standardInstruction
	}
	if len(prevErrors) == 0 {
		return strictInstruction
	}

	var b strings.Builder
	b.WriteString(strictInstruction)
	b.WriteString("\n\nProblems in the rejected answer:\n")
	for _, e := range prevErrors {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Messages builds the instruction/user message pair for one analysis request.
// pageText is the fetched page for URL inputs and may be empty.
func Messages(in domain.Input, pageText string, strict bool, prevErrors []string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: Instruction(strict, prevErrors)},
		{Role: "user", Content: UserMessage(in, pageText)},
	}
}

// UserMessage renders the normalized input for the text-generation service.
func UserMessage(in domain.Input, pageText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Input type: %s\n", in.Kind)

	switch in.Kind {
	case domain.InputText:
		fmt.Fprintf(&b, "Text: %s\n", in.Normalized())
	case domain.InputURL, domain.InputImage:
		fmt.Fprintf(&b, "URL: %s\n", strings.TrimSpace(in.URL))
		if caption := in.Normalized(); caption != "" {
			fmt.Fprintf(&b, "Caption: %s\n", caption)
		}
		if pageText != "" {
			b.WriteString("\nPage text:\n")
			b.WriteString(pageText)
			b.WriteByte('\n')
		} else {
			b.WriteString("\nPage text unavailable; analyze the URL alone.\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
