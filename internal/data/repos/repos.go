package repos

import (
	"gorm.io/gorm"

	"github.com/peerspark/peerspark-backend/internal/data/repos/campus"
	"github.com/peerspark/peerspark-backend/internal/data/repos/convo"
	"github.com/peerspark/peerspark-backend/internal/data/repos/llmcfg"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

type StudentRepo = campus.StudentRepo
type ProjectRepo = campus.ProjectRepo
type CourseRepo = campus.CourseRepo
type KnowledgeChunkRepo = campus.KnowledgeChunkRepo
type NoteRepo = campus.NoteRepo

type ConversationRepo = convo.ConversationRepo
type MessageRepo = convo.MessageRepo

type UserLLMConfigRepo = llmcfg.UserLLMConfigRepo
type UserToolConfigRepo = llmcfg.UserToolConfigRepo

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return campus.NewStudentRepo(db, baseLog)
}
func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return campus.NewProjectRepo(db, baseLog)
}
func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return campus.NewCourseRepo(db, baseLog)
}
func NewKnowledgeChunkRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeChunkRepo {
	return campus.NewKnowledgeChunkRepo(db, baseLog)
}
func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
	return campus.NewNoteRepo(db, baseLog)
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return convo.NewConversationRepo(db, baseLog)
}
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return convo.NewMessageRepo(db, baseLog)
}

func NewUserLLMConfigRepo(db *gorm.DB, baseLog *logger.Logger) UserLLMConfigRepo {
	return llmcfg.NewUserLLMConfigRepo(db, baseLog)
}
func NewUserToolConfigRepo(db *gorm.DB, baseLog *logger.Logger) UserToolConfigRepo {
	return llmcfg.NewUserToolConfigRepo(db, baseLog)
}
