package dto

type SendMessageRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required_without=UploadId"`
	UploadId  string `json:"upload_id"`
}

type SendMessageResponse struct {
	SessionId string `json:"session_id"`
	MessageId string `json:"message_id"`
	Response  string `json:"response"`
	LatencyMs int64  `json:"latency_ms"`
}

type StreamingStatusResponse struct {
	SessionId string `json:"session_id"`
	Streaming bool   `json:"streaming"`
}

// ExtractionResult is what the document-extraction collaborator returns and
// what gets cached per upload.
type ExtractionResult struct {
	ExtractedText string `json:"extractedText"`
	FileUrl       string `json:"fileUrl"`
	FileName      string `json:"fileName"`
}

type CacheExtractionRequest struct {
	UploadId      string `json:"upload_id" validate:"required"`
	ExtractedText string `json:"extracted_text" validate:"required"`
	FileUrl       string `json:"file_url"`
	FileName      string `json:"file_name"`
}

type CacheExtractionResponse struct {
	UploadId string `json:"upload_id"`
	Degraded bool   `json:"degraded"`
}

type CreateSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}
