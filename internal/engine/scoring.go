package engine

import (
	"fmt"
	"math"
	"sort"
)

// QuestionResult 单题判分结果
type QuestionResult struct {
	QuestionID   string   `json:"questionId"`
	SelectedIDs  []string `json:"selectedIds"`
	CorrectIDs   []string `json:"correctIds"`
	Answered     bool     `json:"answered"`
	Correct      bool     `json:"correct"`
	Points       int      `json:"points"`
	EarnedPoints int      `json:"earnedPoints"`
}

// SectionResult 小节汇总。incorrect 与 unanswered 互斥，分别用于前端筛选。
type SectionResult struct {
	SectionID       string           `json:"sectionId"`
	Title           string           `json:"title"`
	CorrectCount    int              `json:"correctCount"`
	IncorrectCount  int              `json:"incorrectCount"`
	UnansweredCount int              `json:"unansweredCount"`
	EarnedPoints    int              `json:"earnedPoints"`
	TotalPoints     int              `json:"totalPoints"`
	Percentage      float64          `json:"percentage"`
	Questions       []QuestionResult `json:"questions"`
}

// ScoreReport 一次提交的完整成绩单，生成后不再修改
type ScoreReport struct {
	TestID         string          `json:"testId"`
	EarnedPoints   int             `json:"earnedPoints"`
	TotalPoints    int             `json:"totalPoints"`
	Percentage     float64         `json:"percentage"`
	Passed         bool            `json:"passed"`
	Grade          string          `json:"grade"`
	QuestionCount  int             `json:"questionCount"`
	AnsweredCount  int             `json:"answeredCount"`
	CorrectCount   int             `json:"correctCount"`
	IncorrectCount int             `json:"incorrectCount"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
	TimedOut       bool            `json:"timedOut"`
	Sections       []SectionResult `json:"sections"`
}

// Score 纯函数判分：相同输入恒得相同输出，无 I/O，无隐藏状态。
// answers 中缺失的键表示未作答；存在即视为已作答（包括空选集）。
// 判分规则为集合全等：选中集合与正确集合完全一致才得分，两种题型同一规则。
func Score(def *TestDefinition, answers map[string][]string, elapsedSeconds int) (*ScoreReport, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := checkAnswerRefs(def, answers); err != nil {
		return nil, err
	}

	report := &ScoreReport{
		TestID:         def.ID,
		ElapsedSeconds: elapsedSeconds,
		QuestionCount:  def.QuestionCount(),
		Sections:       make([]SectionResult, 0, len(def.Sections)),
	}

	for _, sec := range def.Sections {
		sr := SectionResult{
			SectionID: sec.ID,
			Title:     sec.Title,
			Questions: make([]QuestionResult, 0, len(sec.Questions)),
		}

		for i := range sec.Questions {
			q := &sec.Questions[i]
			selected, answered := answers[q.ID]
			qr := scoreQuestion(q, selected, answered)

			sr.TotalPoints += q.Points
			sr.EarnedPoints += qr.EarnedPoints
			switch {
			case qr.Correct:
				sr.CorrectCount++
			case qr.Answered:
				sr.IncorrectCount++
			default:
				sr.UnansweredCount++
			}
			sr.Questions = append(sr.Questions, qr)
		}

		sr.Percentage = percentage(sr.EarnedPoints, sr.TotalPoints)
		report.EarnedPoints += sr.EarnedPoints
		report.TotalPoints += sr.TotalPoints
		report.CorrectCount += sr.CorrectCount
		report.IncorrectCount += sr.IncorrectCount
		report.AnsweredCount += sr.CorrectCount + sr.IncorrectCount
		report.Sections = append(report.Sections, sr)
	}

	report.Percentage = percentage(report.EarnedPoints, report.TotalPoints)
	// 及格判定用未舍入的比值，展示字段才舍入，舍入不能把差一点的成绩抬过线
	report.Passed = rawPercentage(report.EarnedPoints, report.TotalPoints) >= def.PassingScore
	report.Grade = GradeLetter(report.Percentage)

	return report, nil
}

func scoreQuestion(q *Question, selected []string, answered bool) QuestionResult {
	correctIDs := sortedUnique(q.CorrectIDs())
	selectedIDs := sortedUnique(selected)

	correct := answered && setEqual(selectedIDs, correctIDs)
	earned := 0
	if correct {
		earned = q.Points
	}

	return QuestionResult{
		QuestionID:   q.ID,
		SelectedIDs:  selectedIDs,
		CorrectIDs:   correctIDs,
		Answered:     answered,
		Correct:      correct,
		Points:       q.Points,
		EarnedPoints: earned,
	}
}

// checkAnswerRefs 引用了不存在题目或选项的作答属于畸形输入，直接拒绝
func checkAnswerRefs(def *TestDefinition, answers map[string][]string) error {
	byID := make(map[string]*Question)
	for si := range def.Sections {
		for qi := range def.Sections[si].Questions {
			q := &def.Sections[si].Questions[qi]
			byID[q.ID] = q
		}
	}

	for qid, selected := range answers {
		q, ok := byID[qid]
		if !ok {
			return fmt.Errorf("%w: answer references unknown question %q", ErrInvalidDefinition, qid)
		}
		for _, id := range selected {
			if !q.hasOption(id) {
				return fmt.Errorf("%w: answer for question %q references unknown option %q", ErrInvalidDefinition, qid, id)
			}
		}
	}
	return nil
}

// GradeLetter 仅用于展示的等级映射，与及格判定相互独立
func GradeLetter(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

func rawPercentage(earned, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(earned) / float64(total) * 100
}

// percentage 展示用的两位小数舍入
func percentage(earned, total int) float64 {
	return math.Round(rawPercentage(earned, total)*100) / 100
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func setEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
