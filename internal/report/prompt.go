package report

import (
	"strings"

	"github.com/meetscribe/minuted/internal/model"
)

// speakerNote is prepended when the transcript carries diarization labels so
// the model attributes statements instead of echoing the tags.
const speakerNote = "说明：转录文本中的 [SPEAKER_n] 标签表示不同的说话人。请利用这些标签区分发言人并在纪要中正确归属发言内容，但不要在输出中原样保留这些标签。\n\n"

const jsonOnlyMandate = "只输出一个 JSON 对象，不要输出任何其他文字、解释或 Markdown 代码块标记。Output JSON only."

// BuildPrompt assembles the type-specific report prompt. The speaker note is
// included only when the transcript contains a literal [SPEAKER_ token; the
// glossary note only when terms exist.
func BuildPrompt(meetingType model.MeetingType, transcript string, terms []model.GlossaryTerm) string {
	var sb strings.Builder

	if strings.Contains(transcript, "[SPEAKER_") {
		sb.WriteString(speakerNote)
	}
	if note := glossaryNote(terms); note != "" {
		sb.WriteString(note)
	}

	switch meetingType {
	case model.MeetingWeekly:
		sb.WriteString(weeklyPrompt)
	case model.MeetingTech:
		sb.WriteString(techPrompt)
	case model.MeetingCustomer:
		sb.WriteString(customerPrompt)
	default:
		sb.WriteString(generalPrompt)
	}

	sb.WriteString("\n\n会议转录文本如下：\n\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\n")
	sb.WriteString(jsonOnlyMandate)
	return sb.String()
}

// glossaryNote lists domain terms so the model spells them consistently.
func glossaryNote(terms []model.GlossaryTerm) string {
	if len(terms) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("术语表（请在纪要中使用以下标准写法）：\n")
	for _, t := range terms {
		sb.WriteString("- ")
		sb.WriteString(t.Term)
		if len(t.Aliases) > 0 {
			sb.WriteString("（别名：")
			sb.WriteString(strings.Join(t.Aliases, "、"))
			sb.WriteString("）")
		}
		if t.Definition != "" {
			sb.WriteString("：")
			sb.WriteString(t.Definition)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

const generalPrompt = `你是一名专业的会议纪要撰写助手。请根据会议转录文本生成结构化的会议纪要，输出为 JSON 对象，包含以下字段：

{
  "summary": "会议总体摘要",
  "keyTopics": ["讨论的关键议题"],
  "highlights": ["会议亮点"],
  "lowlights": ["会议不足或问题"],
  "decisions": ["做出的决定"],
  "actions": [{"task": "行动项", "owner": "负责人", "deadline": "截止时间", "priority": "high|medium|low"}],
  "participants": ["参会人"],
  "duration": "会议时长（如可从内容推断）",
  "meetingType": "general"
}`

const weeklyPrompt = `你是一名专业的周会纪要撰写助手。请根据会议转录文本生成结构化的周会纪要，输出为 JSON 对象，包含以下字段：

{
  "summary": "会议总体摘要",
  "teamKPI": {
    "overview": "团队 KPI 总览",
    "individuals": [{"name": "成员", "kpi": "个人 KPI 进展", "status": "on-track|at-risk|completed"}]
  },
  "announcements": ["公告事项"],
  "projectReviews": [{
    "project": "项目名",
    "progress": "进展",
    "followUps": ["跟进事项"],
    "highlights": ["亮点"],
    "lowlights": ["不足"],
    "risks": [{"impact": "high|medium|low", "mitigation": "缓解措施"}],
    "challenges": ["挑战"]
  }],
  "decisions": ["做出的决定"],
  "actions": [{"task": "行动项", "owner": "负责人", "deadline": "截止时间", "priority": "high|medium|low"}],
  "participants": ["参会人"],
  "nextMeeting": "下次会议安排"
}`

const techPrompt = `你是一名专业的技术会议纪要撰写助手。请根据会议转录文本生成结构化的技术讨论纪要，输出为 JSON 对象，包含以下字段：

{
  "summary": "会议总体摘要",
  "topics": [{"topic": "技术议题", "discussion": "讨论内容", "conclusion": "结论"}],
  "highlights": ["亮点"],
  "lowlights": ["不足"],
  "actions": [{"task": "行动项", "owner": "负责人", "deadline": "截止时间", "priority": "high|medium|low", "estimate": "工作量估计"}],
  "knowledgeBase": [{"title": "知识点标题", "content": "知识点内容"}],
  "participants": ["参会人"],
  "techStack": ["涉及的技术栈"]
}`

const customerPrompt = `你是一名专业的客户会议纪要撰写助手。请根据会议转录文本生成结构化的客户会议纪要，输出为 JSON 对象，包含以下字段：

{
  "summary": "会议总体摘要",
  "customerInfo": {"company": "客户公司", "attendees": ["客户参会人"]},
  "awsAttendees": ["AWS 参会人"],
  "customerNeeds": [{"need": "客户需求", "priority": "high|medium|low", "background": "需求背景"}],
  "painPoints": [{"point": "痛点", "detail": "详情"}],
  "solutionsDiscussed": [{"solution": "讨论的方案", "awsServices": ["涉及的 AWS 服务"], "customerFeedback": "客户反馈"}],
  "commitments": [{"party": "AWS|客户", "commitment": "承诺事项", "owner": "负责人", "deadline": "截止时间"}],
  "nextSteps": [{"task": "后续任务", "owner": "负责人", "deadline": "截止时间", "priority": "high|medium|low"}],
  "participants": ["参会人"]
}`
