package model

// Report is the gradebook for one assignment.
type Report struct {
	Assignment     AssignmentSummary `json:"assignment"`
	TotalQuestions int               `json:"total_questions"`
	Students       []StudentReport   `json:"students"`
}

// StudentReport is one gradebook row: a student's latest result for every
// question of the assignment.
type StudentReport struct {
	StudentName       string             `json:"student_name"`
	TotalScore        int                `json:"total_score"`
	MaxPossibleScore  int                `json:"max_possible_score"`
	QuestionsAnswered int                `json:"questions_answered"`
	TotalQuestions    int                `json:"total_questions"`
	Breakdown         []StudentBreakdown `json:"breakdown"`
}

// StudentBreakdown is one cell of a gradebook row. All pointer fields are nil
// when the student never submitted the question.
type StudentBreakdown struct {
	QuestionID    string  `json:"question_id"`
	QuestionOrder int     `json:"question_order"`
	Score         *int    `json:"score"`
	Feedback      *string `json:"feedback"`
	ImageData     *string `json:"image_data"`
}

// Percent returns the student's total as a percentage of the maximum.
func (s StudentReport) Percent() float64 {
	if s.MaxPossibleScore == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.MaxPossibleScore) * 100
}
