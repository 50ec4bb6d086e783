package handler

import (
	"time"

	"soup-server/internal/models"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// CreateSoupRequest - тело запроса на создание загадки.
type CreateSoupRequest struct {
	Theme  string `json:"theme"`
	Locale string `json:"locale"`
}

// AskQuestionRequest - тело запроса с вопросом игрока.
type AskQuestionRequest struct {
	Question string `json:"question"`
	Locale   string `json:"locale"`
}

// SubmitSolutionRequest - тело запроса с решением игрока.
type SubmitSolutionRequest struct {
	Solution string `json:"solution"`
	Locale   string `json:"locale"`
}

// LocaleRequest - тело запросов, которым нужна только локаль (giveup, hint).
type LocaleRequest struct {
	Locale string `json:"locale"`
}

// TryResponse - один вопрос с вердиктом судьи.
type TryResponse struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Question string    `json:"question"`
	Response *string   `json:"response,omitempty"`
	Reason   string    `json:"reason"`
	CreateAt time.Time `json:"createAt"`
}

// SoupResponse - полное представление загадки для клиента.
//
// Truth is only disclosed after the puzzle reaches a terminal status;
// otherwise the field is omitted so the hidden ground truth never leaks
// to the presentation layer mid-game.
type SoupResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Surface     string        `json:"surface"`
	Truth       *string       `json:"truth,omitempty"`
	Hints       []string      `json:"hints"`
	Status      string        `json:"status"`
	Solution    *string       `json:"solution,omitempty"`
	Score       *int          `json:"score,omitempty"`
	Explanation *string       `json:"explanation,omitempty"`
	CreateAt    time.Time     `json:"createAt"`
	UpdateAt    time.Time     `json:"updateAt"`
	Tries       []TryResponse `json:"tries"`
}

// InspirationsResponse - список тем для вдохновения.
type InspirationsResponse struct {
	Themes []string `json:"themes"`
}

func toTryResponse(try models.Try) TryResponse {
	resp := TryResponse{
		ID:       try.ID.String(),
		Status:   string(try.Status),
		Question: try.Question,
		Reason:   try.Reason,
		CreateAt: try.CreateAt,
	}
	if try.Response != nil {
		s := string(*try.Response)
		resp.Response = &s
	}
	return resp
}

func toSoupResponse(soup *models.Soup) SoupResponse {
	resp := SoupResponse{
		ID:          soup.ID.String(),
		Title:       soup.Title,
		Surface:     soup.Surface,
		Hints:       soup.Hints,
		Status:      string(soup.Status),
		Solution:    soup.Solution,
		Score:       soup.Score,
		Explanation: soup.Explanation,
		CreateAt:    soup.CreateAt,
		UpdateAt:    soup.UpdateAt,
		Tries:       make([]TryResponse, 0, len(soup.Tries)),
	}
	if soup.IsTerminal() {
		truth := soup.Truth
		resp.Truth = &truth
	}
	for _, try := range soup.Tries {
		resp.Tries = append(resp.Tries, toTryResponse(try))
	}
	return resp
}
