package db

import "gorm.io/gorm"

// 编辑阶段
const (
	PhaseIdle       = "idle"
	PhaseSubmitting = "submitting"
)

// EditBuffer 保存某个编辑会话对某篇文章的未提交修改
type EditBuffer struct {
	gorm.Model
	SessionID    string `gorm:"size:64;not null;uniqueIndex:idx_edit_buffer_session_slug"`
	Slug         string `gorm:"size:255;not null;uniqueIndex:idx_edit_buffer_session_slug"`
	Title        string
	Body         []byte // 富文本 JSON，nil 表示编辑器尚未产生内容
	PhotoName    string
	PhotoType    string
	PhotoData    []byte
	InitialPhoto string
	Seeded       bool
	Phase        string `gorm:"size:16;default:idle"`
}

// HasPhoto 表示是否选择了新图片
func (b *EditBuffer) HasPhoto() bool {
	return len(b.PhotoData) > 0
}
