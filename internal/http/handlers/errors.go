package handlers

import (
	"errors"
	"net/http"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/middleware"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/runcomfy"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/wizard"
)

const (
	codeBadRequest         = "bad_request"
	codeMissingCredentials = "missing_credentials"
	codeInvalidRequest     = "invalid_request"
	codeNotFound           = "not_found"
	codeInvalidStep        = "invalid_step"
	codeUnknownCandidate   = "unknown_candidate"
	codeNoScenes           = "no_scenes"
	codeJobFailed          = "job_failed"
	codeUpstream           = "upstream_error"
	codeTimeout            = "timeout"
	codeInternal           = "internal"
)

var messages = map[string]map[string]string{
	middleware.LocaleEnglish: {
		codeBadRequest:         "The request body could not be read.",
		codeMissingCredentials: "A RunComfy API key and deployment ID are required.",
		codeInvalidRequest:     "Some request fields are missing or invalid.",
		codeNotFound:           "Session not found.",
		codeInvalidStep:        "This step is not available right now.",
		codeUnknownCandidate:   "Pick one of the generated faces.",
		codeNoScenes:           "No scene has been generated yet.",
		codeJobFailed:          "Image generation failed.",
		codeUpstream:           "The image service could not be reached.",
		codeTimeout:            "Image generation took too long.",
		codeInternal:           "Something went wrong.",
	},
	middleware.LocaleKorean: {
		codeBadRequest:         "요청 본문을 읽을 수 없습니다.",
		codeMissingCredentials: "RunComfy API 키와 배포 ID가 필요합니다.",
		codeInvalidRequest:     "요청 항목이 누락되었거나 올바르지 않습니다.",
		codeNotFound:           "세션을 찾을 수 없습니다.",
		codeInvalidStep:        "지금은 이 단계를 진행할 수 없습니다.",
		codeUnknownCandidate:   "생성된 얼굴 중 하나를 선택하세요.",
		codeNoScenes:           "아직 생성된 장면이 없습니다.",
		codeJobFailed:          "이미지 생성에 실패했습니다.",
		codeUpstream:           "이미지 서비스에 연결할 수 없습니다.",
		codeTimeout:            "이미지 생성 시간이 초과되었습니다.",
		codeInternal:           "문제가 발생했습니다.",
	},
}

func message(locale, code string) string {
	if m, ok := messages[locale]; ok {
		if msg, ok := m[code]; ok {
			return msg
		}
	}
	return messages[middleware.LocaleEnglish][code]
}

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, runcomfy.ErrConfiguration):
		return http.StatusBadRequest, codeMissingCredentials
	case errors.Is(err, casting.ErrPromptRequired),
		errors.Is(err, casting.ErrOutfitRequired),
		errors.Is(err, casting.ErrFaceImageRequired),
		errors.Is(err, casting.ErrInvalidOption):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, wizard.ErrSessionNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, wizard.ErrInvalidTransition):
		return http.StatusConflict, codeInvalidStep
	case errors.Is(err, wizard.ErrUnknownCandidate):
		return http.StatusConflict, codeUnknownCandidate
	case errors.Is(err, wizard.ErrNoScenes):
		return http.StatusConflict, codeNoScenes
	case errors.Is(err, runcomfy.ErrPollTimeout):
		return http.StatusGatewayTimeout, codeTimeout
	case errors.Is(err, runcomfy.ErrJobFailed):
		return http.StatusBadGateway, codeJobFailed
	case errors.Is(err, runcomfy.ErrSubmission),
		errors.Is(err, runcomfy.ErrPoll),
		errors.Is(err, runcomfy.ErrResult),
		errors.Is(err, runcomfy.ErrImageFetch):
		return http.StatusBadGateway, codeUpstream
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
