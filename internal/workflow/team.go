package workflow

import (
	"strings"

	"floorflow/backend/pkg/models"
)

var teamKeywords = map[models.Team][]string{
	models.TeamCutting:   {"cut"},
	models.TeamSewing:    {"sew", "stitch"},
	models.TeamFinishing: {"wash", "dye", "press", "finish"},
	models.TeamQuality:   {"qc", "inspect", "quality"},
	models.TeamPacking:   {"pack", "ship"},
}

// TeamForStage returns the team that works a stage. The explicit Team
// field wins; otherwise the stage name is matched against team keywords.
// A name that matches keywords of more than one team resolves to no team.
func TeamForStage(st *models.Stage) models.Team {
	if st.Team != "" {
		return st.Team
	}

	name := strings.ToLower(st.Name)
	var found models.Team
	for _, team := range models.Teams {
		for _, kw := range teamKeywords[team] {
			if !strings.Contains(name, kw) {
				continue
			}
			if found != "" && found != team {
				return ""
			}
			found = team
		}
	}
	return found
}

// StagesForTeam returns the ids of the stages in w worked by team.
func StagesForTeam(w *models.Workflow, team models.Team) []string {
	var ids []string
	for i := range w.Stages {
		if TeamForStage(&w.Stages[i]) == team {
			ids = append(ids, w.Stages[i].ID)
		}
	}
	return ids
}
