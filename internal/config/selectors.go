package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors - упорядоченные списки CSS/XPath селекторов по полям.
// Порядок в списке = приоритет стратегии.
type Selectors struct {
	LoginAffordance []string `yaml:"login_affordance"`
	ErrorMarkers    []string `yaml:"error_markers"`
	NoteReady       []string `yaml:"note_ready"`

	Title        []string `yaml:"title"`
	Author       []string `yaml:"author"`
	PublishTime  []string `yaml:"publish_time"`
	BodyPrecise  []string `yaml:"body_precise"`
	BodyXPath    []string `yaml:"body_xpath"`
	BodyBlocks   []string `yaml:"body_blocks"`
	CommentZones []string `yaml:"comment_zones"`

	CommentCards    []string `yaml:"comment_cards"`
	CommentUserLink string   `yaml:"comment_user_link"`
	CommentAuthor   []string `yaml:"comment_author"`
	CommentContent  []string `yaml:"comment_content"`
	CommentTime     []string `yaml:"comment_time"`
	LoadMoreWords   []string `yaml:"load_more_words"`

	CommentInput  []string `yaml:"comment_input"`
	EditableHints []string `yaml:"editable_hints"`
	SubmitButtons []string `yaml:"submit_buttons"`
	SubmitWords   []string `yaml:"submit_words"`

	SearchReady         []string `yaml:"search_ready"`
	SearchCards         []string `yaml:"search_cards"`
	SearchCardContainer string   `yaml:"search_card_container"`
	SearchTitle         []string `yaml:"search_title"`
	SearchAuthor        []string `yaml:"search_author"`
}

// DefaultSelectors - селекторы, актуальные для текущей вёрстки площадки.
func DefaultSelectors() *Selectors {
	return &Selectors{
		LoginAffordance: []string{".login-btn", "button.login", ".side-bar .login"},
		ErrorMarkers:    []string{"当前笔记暂时无法浏览", "内容不存在", "页面不存在", "内容已被删除"},
		NoteReady:       []string{"#detail-title", "#detail-desc", ".note-content", ".note-container"},

		Title:        []string{"#detail-title", "h1.title", ".note-content .title", "div.title", "span.title"},
		Author:       []string{".user-info .username", ".author-info .name", "a.user-name", ".user .name", "span.author"},
		PublishTime:  []string{".publish-time", ".time", ".date", "time", "span.time"},
		BodyPrecise:  []string{"#detail-desc .note-text"},
		BodyXPath:    []string{`//div[@id="detail-desc"]/span[@class="note-text"]`, `//div[@id="detail-desc"]`},
		BodyBlocks:   []string{"div#detail-desc", "div.note-content", "div.desc", "span.note-text"},
		CommentZones: []string{".comments-container", ".comment-list", ".feed-comment", ".comment-item", "div[data-v-aed4aacc]"},

		CommentCards:    []string{".comment-item", ".feed-comment", ".comment-list .comment", "div[data-v-aed4aacc]", ".comments-container .comment"},
		CommentUserLink: `a[href*="/user/profile/"]`,
		CommentAuthor:   []string{".username", ".user-name", ".name", ".author", `a[href*="user"]`, "span.user"},
		CommentContent:  []string{".content", ".comment-content", ".text", ".comment-text"},
		CommentTime:     []string{".time", ".date", ".publish-time", "time", `span[title*="20"]`},
		LoadMoreWords:   []string{"展开更多", "查看更多", "加载更多"},

		CommentInput: []string{
			`textarea[placeholder*="评论"]`,
			`textarea[placeholder*="说点什么"]`,
			`input[placeholder*="评论"]`,
			`input[placeholder*="说点什么"]`,
			".comment-input textarea",
			".comment-input input",
			"textarea.comment",
			"input.comment",
		},
		EditableHints: []string{"评论", "说点什么", "comment"},
		SubmitButtons: []string{".send-btn", ".submit-btn", ".comment-send", `button[type="submit"]`},
		SubmitWords:   []string{"发送", "发布", "提交"},

		SearchReady: []string{`a[href*="/explore/"]`, `a[href*="/discovery/item/"]`, ".feeds-page"},
		SearchCards: []string{
			`a[href*="/explore/"]`,
			`a[href*="/discovery/item/"]`,
			`section a[href*="/explore/"]`,
			"div.note-item a",
			`.feeds-page a[href*="/explore/"]`,
		},
		SearchCardContainer: "section, div.note-item, div.note-card",
		SearchTitle:         []string{".title span", ".title", "span", "div", "p"},
		SearchAuthor:        []string{"span.author", "div.author", "a.user-name", "span.name"},
	}
}

// LoadSelectors загружает селекторы из YAML поверх DefaultSelectors().
// Пустой путь - только значения по умолчанию.
func LoadSelectors(filePath string) (*Selectors, error) {
	selectors := DefaultSelectors()
	if filePath == "" {
		return selectors, nil
	}

	// Проверяем существование файла
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// validateSelectors проверяет минимальный набор селекторов
func validateSelectors(s *Selectors) error {
	required := map[string][]string{
		"error_markers":  s.ErrorMarkers,
		"title":          s.Title,
		"body_precise":   s.BodyPrecise,
		"comment_zones":  s.CommentZones,
		"comment_cards":  s.CommentCards,
		"comment_input":  s.CommentInput,
		"submit_buttons": s.SubmitButtons,
		"search_cards":   s.SearchCards,
	}
	for name, list := range required {
		if len(list) == 0 {
			return fmt.Errorf("%s is required", name)
		}
	}
	if s.SearchCardContainer == "" {
		return fmt.Errorf("search_card_container is required")
	}
	return nil
}
