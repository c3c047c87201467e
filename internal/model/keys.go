package model

// Blob key layout, relative to the configured S3 prefix:
//
//	inbox/<meetingId>/<filename>
//	transcripts/<meetingId>/{transcribe,whisper,funasr}.json
//	reports/<meetingId>/report.json
//	exports/<meetingId>/report.pdf

func InboxKey(meetingID, filename string) string {
	return "inbox/" + meetingID + "/" + filename
}

func TranscriptKey(meetingID, track string) string {
	return "transcripts/" + meetingID + "/" + track + ".json"
}

func ReportJSONKey(meetingID string) string {
	return "reports/" + meetingID + "/report.json"
}

func ExportPDFKey(meetingID string) string {
	return "exports/" + meetingID + "/report.pdf"
}
