package locale

// Key identifies a user-facing text.
type Key string

const (
	KeyEditPostTitle      Key = "edit_post_title"
	KeyLoginTitle         Key = "login_title"
	KeyLoadFailed         Key = "load_failed"
	KeyPostUpdated        Key = "post_updated"
	KeyConfirmDeletePhoto Key = "confirm_delete_photo"
	KeyPhotoRejected      Key = "photo_rejected"
	KeyLoginFailed        Key = "login_failed"
	KeyNotAdmin           Key = "not_admin"
	KeySessionExpired     Key = "session_expired"
	KeyInvalidBody        Key = "invalid_body"
	KeyHomeTitle          Key = "home_title"
	KeySignedIn           Key = "signed_in"
)

type entry struct {
	english string
	chinese string
}

var catalog = map[Key]entry{
	KeyEditPostTitle:      {english: "Edit Post", chinese: "编辑文章"},
	KeyLoginTitle:         {english: "Admin Login", chinese: "管理员登录"},
	KeyLoadFailed:         {english: "Couldn't fetch the post detail", chinese: "无法获取文章详情"},
	KeyPostUpdated:        {english: "Your post is updated", chinese: "文章已更新"},
	KeyConfirmDeletePhoto: {english: "Do you want to delete your post picture?", chinese: "确定要删除文章图片吗？"},
	KeyPhotoRejected:      {english: "Please choose an image file", chinese: "请选择图片文件"},
	KeyLoginFailed:        {english: "Invalid email or password", chinese: "邮箱或密码错误"},
	KeyNotAdmin:           {english: "This account cannot edit posts", chinese: "该账号没有编辑权限"},
	KeySessionExpired:     {english: "Your session has expired, please sign in again", chinese: "登录已过期，请重新登录"},
	KeyInvalidBody:        {english: "The post body could not be read", chinese: "无法解析文章内容"},
	KeyHomeTitle:          {english: "Posts", chinese: "文章管理"},
	KeySignedIn:           {english: "You are signed in", chinese: "登录成功"},
}

// Pick returns the text matching the request language, defaulting to English.
func Pick(language, english, chinese string) string {
	if NormalizeLanguage(language) == LanguageChinese && chinese != "" {
		return chinese
	}
	if english != "" {
		return english
	}
	return chinese
}

// T returns the catalog text for key in language. Unknown keys are returned as is.
func T(language string, key Key) string {
	e, ok := catalog[key]
	if !ok {
		return string(key)
	}
	return Pick(language, e.english, e.chinese)
}
