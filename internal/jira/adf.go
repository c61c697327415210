package jira

import (
	"encoding/json"
	"strings"
)

// ADFDocument wraps plain text in a minimal Atlassian Document Format
// document, the body shape REST v3 requires for descriptions and comments.
func ADFDocument(text string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []interface{}{
			map[string]interface{}{
				"type": "paragraph",
				"content": []interface{}{
					map[string]interface{}{"type": "text", "text": text},
				},
			},
		},
	}
}

// ADFText extracts the plain text of an ADF fragment, joining block nodes
// with newlines. A bare JSON string passes through unchanged (REST v2
// servers return those).
func ADFText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var node map[string]interface{}
	if json.Unmarshal(raw, &node) != nil {
		return ""
	}

	var blocks []string
	collectADFBlocks(node, &blocks)
	return strings.Join(blocks, "\n")
}

// collectADFBlocks walks one ADF node, appending the text of each
// top-level block to blocks.
func collectADFBlocks(node map[string]interface{}, blocks *[]string) {
	content, _ := node["content"].([]interface{})
	for _, child := range content {
		m, ok := child.(map[string]interface{})
		if !ok {
			continue
		}
		var sb strings.Builder
		collectADFText(m, &sb)
		if sb.Len() > 0 {
			*blocks = append(*blocks, sb.String())
		}
	}
}

// collectADFText accumulates the inline text of a node and its children.
func collectADFText(node map[string]interface{}, sb *strings.Builder) {
	if t, ok := node["text"].(string); ok {
		sb.WriteString(t)
	}
	content, _ := node["content"].([]interface{})
	for _, child := range content {
		if m, ok := child.(map[string]interface{}); ok {
			collectADFText(m, sb)
		}
	}
}
