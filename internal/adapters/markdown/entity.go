package markdown

import (
	"regexp"
	"strings"
)

// entityLabels maps "## 基本信息" bullet labels to the field they fill.
var entityLabels = map[string]string{
	"姓名": "name",
	"名称": "name",
	"本名": "name",

	"简称": "shortName",
	"外号": "shortName",

	"别名": "alias",
	"又名": "alias",

	"英文名":  "enName",
	"英文名称": "enName",

	"称号": "title",
	"头衔": "title",
}

// entityFieldOrder fixes the order harvested aliases are returned in.
var entityFieldOrder = []string{"name", "shortName", "alias", "enName", "title"}

var (
	basicInfoHeading = regexp.MustCompile(`^##\s*基本信息`)
	sectionHeading   = regexp.MustCompile(`^##\s+`)
	labelledBullet   = regexp.MustCompile(`^[-*]\s*([^：:]+)[：:]\s*(.+)$`)
)

// EntityMeta returns the labelled fields of the "## 基本信息" section, keyed by
// field name. A later bullet for the same field overwrites an earlier one.
func EntityMeta(body string) map[string]string {
	meta := make(map[string]string)
	inBasic := false
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if basicInfoHeading.MatchString(line) {
			inBasic = true
			continue
		}
		if !inBasic {
			continue
		}
		if sectionHeading.MatchString(line) {
			break
		}
		m := labelledBullet.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		field, ok := entityLabels[strings.TrimSpace(m[1])]
		if !ok {
			continue
		}
		if value := strings.TrimSpace(m[2]); value != "" {
			meta[field] = value
		}
	}
	return meta
}

// EntityAliases returns the harvested entity names as alias candidates.
// Values listing several names ("甲、乙 / 丙") are split.
func EntityAliases(body string) []string {
	meta := EntityMeta(body)
	var out []string
	for _, field := range entityFieldOrder {
		v, ok := meta[field]
		if !ok {
			continue
		}
		for _, name := range splitNames(v) {
			out = append(out, name)
		}
	}
	return out
}

func splitNames(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		switch r {
		case '、', '，', ',', '/', '／', ';', '；':
			return true
		}
		return false
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
