package analysis

import "fmt"

// CommentType - стиль комментария, для которого готовятся подсказки.
type CommentType string

const (
	CommentPraise   CommentType = "点赞"
	CommentPromote  CommentType = "引流"
	CommentQuestion CommentType = "提问"
	CommentShare    CommentType = "分享经验"
)

// CommentTypes - поддерживаемые типы в порядке отображения.
var CommentTypes = []CommentType{CommentPraise, CommentPromote, CommentQuestion, CommentShare}

// ParseCommentType возвращает тип; неизвестные и пустые значения дают CommentPraise.
func ParseCommentType(s string) CommentType {
	for _, t := range CommentTypes {
		if string(t) == s {
			return t
		}
	}
	return CommentPraise
}

// Guidance - подсказки для ручного составления комментария. Ничего не публикует.
type Guidance struct {
	Type        CommentType `json:"type"`
	Title       string      `json:"title"`
	Domains     []string    `json:"domains"`
	Keywords    []string    `json:"keywords"`
	Suggestions []string    `json:"suggestions"`
}

// BuildGuidance строит подсказки по заголовку, доменам и ключевым словам заметки.
func BuildGuidance(t CommentType, title string, domains, keywords []string) Guidance {
	domain := "这个话题"
	if len(domains) > 0 && domains[0] != GeneralDomain {
		domain = domains[0]
	}
	keyword := "这个"
	if len(keywords) > 0 {
		keyword = keywords[0]
	}

	var suggestions []string
	switch t {
	case CommentPromote:
		suggestions = []string{
			fmt.Sprintf("关于%s，我也有一些心得，欢迎交流", domain),
			"同样关注这个领域，可以互相学习",
			"有相同兴趣的朋友可以关注我，一起讨论",
		}
	case CommentQuestion:
		suggestions = []string{
			fmt.Sprintf("请问%s具体怎么操作呢？", keyword),
			"能详细说说具体的步骤吗？",
			"这个方法适合新手吗？",
		}
	case CommentShare:
		suggestions = []string{
			fmt.Sprintf("我也试过类似的方法，%s确实需要多实践", domain),
			"补充一点经验：...",
			"我的做法是...",
		}
	default:
		t = CommentPraise
		suggestions = []string{
			fmt.Sprintf("太棒了！%s真的很有用", title),
			"学到了，感谢分享！",
			"这个内容质量很高，收藏了",
			"楼主分享的很详细，点赞支持",
		}
	}

	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	return Guidance{
		Type:        t,
		Title:       title,
		Domains:     domains,
		Keywords:    keywords,
		Suggestions: suggestions,
	}
}
