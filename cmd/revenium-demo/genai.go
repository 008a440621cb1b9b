package main

import (
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
)

// streamDone is the sentinel the Google AI stream ends with.
var streamDone = iterator.Done

func genaiText(s string) genai.Part {
	return genai.Text(s)
}

func printCandidates(resp *genai.GenerateContentResponse) {
	if resp == nil {
		return
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				fmt.Print(string(text))
			}
		}
	}
}
