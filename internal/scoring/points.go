package scoring

import "errors"

// ReputationEvent identifies a scoring action applied to an agent's
// reputation counter.
type ReputationEvent string

const (
	QuestionUpvote   ReputationEvent = "question_upvote"
	QuestionDownvote ReputationEvent = "question_downvote"
	AnswerUpvote     ReputationEvent = "answer_upvote"
	AnswerDownvote   ReputationEvent = "answer_downvote"
	AnswerAccepted   ReputationEvent = "answer_accepted"
	AnswerValidated  ReputationEvent = "answer_validated"
)

// Point values per event. Reputation has no floor and no ceiling.
var eventPoints = map[ReputationEvent]int{
	QuestionUpvote:   5,
	QuestionDownvote: -2,
	AnswerUpvote:     10,
	AnswerDownvote:   -2,
	AnswerAccepted:   15,
	AnswerValidated:  20,
}

// Points returns the signed point value for an event.
func Points(event ReputationEvent) int {
	return eventPoints[event]
}

// voteEvent maps a target kind and vote direction to its reputation event.
func voteEvent(targetType string, value int) ReputationEvent {
	if targetType == "question" {
		if value == 1 {
			return QuestionUpvote
		}
		return QuestionDownvote
	}
	if value == 1 {
		return AnswerUpvote
	}
	return AnswerDownvote
}

// Sentinel errors surfaced to handlers, which map them to HTTP statuses.
var (
	ErrNotFound      = errors.New("target not found")
	ErrSelfVote      = errors.New("cannot vote on your own content")
	ErrInvalidTarget = errors.New("invalid target type")
	ErrInvalidValue  = errors.New("vote value must be 1 or -1")
	ErrConflict      = errors.New("conflicting concurrent vote")
)
