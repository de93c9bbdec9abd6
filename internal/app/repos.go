package app

import (
	"gorm.io/gorm"

	"github.com/peerspark/peerspark-backend/internal/data/repos"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

type Repos struct {
	Students repos.StudentRepo
	Projects repos.ProjectRepo
	Courses  repos.CourseRepo
	Chunks   repos.KnowledgeChunkRepo
	Notes    repos.NoteRepo

	Conversations repos.ConversationRepo
	Messages      repos.MessageRepo

	LLMConfigs  repos.UserLLMConfigRepo
	ToolConfigs repos.UserToolConfigRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Students:      repos.NewStudentRepo(db, log),
		Projects:      repos.NewProjectRepo(db, log),
		Courses:       repos.NewCourseRepo(db, log),
		Chunks:        repos.NewKnowledgeChunkRepo(db, log),
		Notes:         repos.NewNoteRepo(db, log),
		Conversations: repos.NewConversationRepo(db, log),
		Messages:      repos.NewMessageRepo(db, log),
		LLMConfigs:    repos.NewUserLLMConfigRepo(db, log),
		ToolConfigs:   repos.NewUserToolConfigRepo(db, log),
	}
}
