// Package export renders the delivery artifact sent by the export stage:
// a branded, table-based HTML email body built from the report JSON.
package export

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// section describes how one report field renders. Sections absent from the
// report, or of an unexpected shape, are skipped silently.
type section struct {
	key     string
	title   string
	kind    string   // "text", "list", "table"
	columns []column // table only
}

type column struct {
	key   string
	title string
}

var actionColumns = []column{
	{"task", "行动项"}, {"owner", "负责人"}, {"deadline", "截止时间"}, {"priority", "优先级"}, {"estimate", "工作量"},
}

// sections is the superset across all meeting types; each report only carries
// its own type's fields, so rendering is driven by what is present.
var sections = []section{
	{key: "summary", title: "会议摘要", kind: "text"},
	{key: "keyTopics", title: "关键议题", kind: "list"},
	{key: "announcements", title: "公告事项", kind: "list"},
	{key: "topics", title: "技术议题", kind: "table", columns: []column{
		{"topic", "议题"}, {"discussion", "讨论"}, {"conclusion", "结论"},
	}},
	{key: "customerNeeds", title: "客户需求", kind: "table", columns: []column{
		{"need", "需求"}, {"priority", "优先级"}, {"background", "背景"},
	}},
	{key: "painPoints", title: "痛点", kind: "table", columns: []column{
		{"point", "痛点"}, {"detail", "详情"},
	}},
	{key: "solutionsDiscussed", title: "讨论的方案", kind: "table", columns: []column{
		{"solution", "方案"}, {"customerFeedback", "客户反馈"},
	}},
	{key: "commitments", title: "承诺事项", kind: "table", columns: []column{
		{"party", "承诺方"}, {"commitment", "承诺"}, {"owner", "负责人"}, {"deadline", "截止时间"},
	}},
	{key: "nextSteps", title: "后续任务", kind: "table", columns: actionColumns},
	{key: "highlights", title: "亮点", kind: "list"},
	{key: "lowlights", title: "不足", kind: "list"},
	{key: "decisions", title: "决定", kind: "list"},
	{key: "actions", title: "行动项", kind: "table", columns: actionColumns},
	{key: "knowledgeBase", title: "知识沉淀", kind: "table", columns: []column{
		{"title", "标题"}, {"content", "内容"},
	}},
	{key: "techStack", title: "技术栈", kind: "list"},
	{key: "awsAttendees", title: "AWS 参会人", kind: "list"},
	{key: "participants", title: "参会人", kind: "list"},
	{key: "nextMeeting", title: "下次会议", kind: "text"},
	{key: "duration", title: "会议时长", kind: "text"},
}

const (
	headerStyle = `background-color:#232f3e;color:#ffffff;padding:16px 24px;font-size:20px;`
	titleStyle  = `color:#232f3e;border-bottom:2px solid #ff9900;padding-bottom:4px;margin:24px 0 8px;font-size:16px;`
	tableStyle  = `border-collapse:collapse;width:100%;font-size:14px;`
	cellStyle   = `border:1px solid #dddddd;padding:6px 10px;text-align:left;vertical-align:top;`
	headStyle   = cellStyle + `background-color:#f2f3f3;font-weight:bold;`
)

// Subject builds the MIME-safe email subject for a meeting.
func Subject(meetingName string) string {
	return "会议纪要 - " + meetingName
}

// BuildHTML renders the report JSON into the email body. Unknown report
// fields are ignored; known fields with unexpected shapes are skipped.
func BuildHTML(reportJSON []byte, meetingName string) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal(reportJSON, &doc); err != nil {
		return "", fmt.Errorf("decode report: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><body style="font-family:'Helvetica Neue',Arial,'PingFang SC','Microsoft YaHei',sans-serif;margin:0;background-color:#f7f7f7;">`)
	sb.WriteString(`<div style="max-width:720px;margin:0 auto;background-color:#ffffff;">`)
	sb.WriteString(`<div style="` + headerStyle + `">会议纪要：` + html.EscapeString(meetingName) + `</div>`)
	sb.WriteString(`<div style="padding:0 24px 24px;">`)

	for _, sec := range sections {
		value, ok := doc[sec.key]
		if !ok {
			continue
		}
		switch sec.kind {
		case "text":
			renderText(&sb, sec.title, value)
		case "list":
			renderList(&sb, sec.title, value)
		case "table":
			renderTable(&sb, sec.title, sec.columns, value)
		}
	}

	renderWeeklyKPI(&sb, doc["teamKPI"])
	renderProjectReviews(&sb, doc["projectReviews"])
	renderCustomerInfo(&sb, doc["customerInfo"])

	sb.WriteString(`</div></div></body></html>`)
	return sb.String(), nil
}

func renderText(sb *strings.Builder, title string, value any) {
	s, ok := value.(string)
	if !ok || s == "" {
		return
	}
	sb.WriteString(`<h3 style="` + titleStyle + `">` + html.EscapeString(title) + `</h3>`)
	sb.WriteString(`<p style="font-size:14px;line-height:1.6;">` + html.EscapeString(s) + `</p>`)
}

func renderList(sb *strings.Builder, title string, value any) {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return
	}
	sb.WriteString(`<h3 style="` + titleStyle + `">` + html.EscapeString(title) + `</h3><ul style="font-size:14px;line-height:1.6;">`)
	for _, item := range items {
		if s, ok := item.(string); ok {
			sb.WriteString(`<li>` + html.EscapeString(s) + `</li>`)
		}
	}
	sb.WriteString(`</ul>`)
}

func renderTable(sb *strings.Builder, title string, cols []column, value any) {
	rows, ok := value.([]any)
	if !ok || len(rows) == 0 {
		return
	}

	// Only emit columns that at least one row fills.
	used := make([]column, 0, len(cols))
	for _, c := range cols {
		for _, row := range rows {
			if m, ok := row.(map[string]any); ok {
				if s := stringField(m, c.key); s != "" {
					used = append(used, c)
					break
				}
			}
		}
	}
	if len(used) == 0 {
		return
	}

	sb.WriteString(`<h3 style="` + titleStyle + `">` + html.EscapeString(title) + `</h3>`)
	sb.WriteString(`<table style="` + tableStyle + `"><tr>`)
	for _, c := range used {
		sb.WriteString(`<th style="` + headStyle + `">` + html.EscapeString(c.title) + `</th>`)
	}
	sb.WriteString(`</tr>`)
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		sb.WriteString(`<tr>`)
		for _, c := range used {
			sb.WriteString(`<td style="` + cellStyle + `">` + html.EscapeString(stringField(m, c.key)) + `</td>`)
		}
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</table>`)
}

func renderWeeklyKPI(sb *strings.Builder, value any) {
	kpi, ok := value.(map[string]any)
	if !ok {
		return
	}
	renderText(sb, "团队 KPI", kpi["overview"])
	renderTable(sb, "个人 KPI", []column{
		{"name", "成员"}, {"kpi", "进展"}, {"status", "状态"},
	}, kpi["individuals"])
}

func renderProjectReviews(sb *strings.Builder, value any) {
	reviews, ok := value.([]any)
	if !ok || len(reviews) == 0 {
		return
	}
	sb.WriteString(`<h3 style="` + titleStyle + `">项目回顾</h3>`)
	for _, item := range reviews {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(m, "project")
		sb.WriteString(`<h4 style="margin:12px 0 4px;font-size:14px;">` + html.EscapeString(name) + `</h4>`)
		if progress := stringField(m, "progress"); progress != "" {
			sb.WriteString(`<p style="font-size:14px;line-height:1.6;">` + html.EscapeString(progress) + `</p>`)
		}
		renderList(sb, "跟进事项", m["followUps"])
		renderTable(sb, "风险", []column{
			{"impact", "影响"}, {"mitigation", "缓解措施"},
		}, m["risks"])
		renderList(sb, "挑战", m["challenges"])
	}
}

func renderCustomerInfo(sb *strings.Builder, value any) {
	info, ok := value.(map[string]any)
	if !ok {
		return
	}
	renderText(sb, "客户公司", info["company"])
	renderList(sb, "客户参会人", info["attendees"])
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%f", v), ".000000")
	default:
		return ""
	}
}
