// Package analysis - статический словарь доменов и разбор текста на ключевые слова.
// Никакого NLP: только поиск подстрок и токенизация по письменности.
package analysis

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneralDomain - домен по умолчанию, когда словарь ничего не нашёл.
const GeneralDomain = "general"

type Domain struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Dictionary - упорядоченный список доменов. Порядок важен: первый совпавший домен побеждает.
type Dictionary struct {
	Domains []Domain `yaml:"domains"`
}

func DefaultDictionary() *Dictionary {
	return &Dictionary{Domains: []Domain{
		{Name: "美妆", Keywords: []string{"口红", "粉底", "眼影", "护肤", "美妆", "化妆", "保湿", "精华", "面膜"}},
		{Name: "穿搭", Keywords: []string{"穿搭", "衣服", "搭配", "时尚", "风格", "单品", "衣橱", "潮流"}},
		{Name: "美食", Keywords: []string{"美食", "好吃", "食谱", "餐厅", "小吃", "甜点", "烘焙", "菜谱"}},
		{Name: "旅行", Keywords: []string{"旅行", "旅游", "景点", "出行", "攻略", "打卡", "度假", "酒店"}},
		{Name: "母婴", Keywords: []string{"宝宝", "母婴", "育儿", "儿童", "婴儿", "辅食", "玩具"}},
		{Name: "数码", Keywords: []string{"数码", "手机", "电脑", "相机", "智能", "设备", "科技"}},
		{Name: "家居", Keywords: []string{"家居", "装修", "家具", "设计", "收纳", "布置", "家装"}},
		{Name: "健身", Keywords: []string{"健身", "运动", "瘦身", "减肥", "训练", "塑形", "肌肉"}},
		{Name: "AI", Keywords: []string{"AI", "人工智能", "大模型", "编程", "开发", "技术", "Claude", "GPT"}},
	}}
}

// LoadDictionary читает словарь из YAML. Пустой путь - словарь по умолчанию.
func LoadDictionary(filePath string) (*Dictionary, error) {
	if filePath == "" {
		return DefaultDictionary(), nil
	}
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary file: %w", err)
	}
	defer file.Close()

	var d Dictionary
	if err := yaml.NewDecoder(file).Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse dictionary YAML: %w", err)
	}
	if len(d.Domains) == 0 {
		return nil, fmt.Errorf("dictionary %s has no domains", filePath)
	}
	for _, dom := range d.Domains {
		if dom.Name == "" || len(dom.Keywords) == 0 {
			return nil, fmt.Errorf("dictionary domain %q must have a name and keywords", dom.Name)
		}
	}
	return &d, nil
}

// MatchDomain возвращает первый домен, чьё ключевое слово встречается в text
// (без учёта регистра), и само совпавшее слово.
func (d *Dictionary) MatchDomain(text string) (domain, keyword string, ok bool) {
	lower := strings.ToLower(text)
	for _, dom := range d.Domains {
		for _, kw := range dom.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return dom.Name, kw, true
			}
		}
	}
	return GeneralDomain, "", false
}

// DomainTags - все совпавшие домены в порядке словаря; минимум один тег.
func (d *Dictionary) DomainTags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, dom := range d.Domains {
		for _, kw := range dom.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				tags = append(tags, dom.Name)
				break
			}
		}
	}
	if len(tags) == 0 {
		return []string{GeneralDomain}
	}
	return tags
}

// Keywords - словарные слова домена; nil для неизвестного домена.
func (d *Dictionary) Keywords(domain string) []string {
	for _, dom := range d.Domains {
		if dom.Name == domain {
			out := make([]string, len(dom.Keywords))
			copy(out, dom.Keywords)
			return out
		}
	}
	return nil
}

// MatchedKeywords - словарные слова, встречающиеся в text, в порядке словаря.
func (d *Dictionary) MatchedKeywords(text string) []string {
	lower := strings.ToLower(text)
	set := NewOrderedSet()
	for _, dom := range d.Domains {
		for _, kw := range dom.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				set.Add(kw)
			}
		}
	}
	return set.Items()
}

// ExtractKeywords - словарные совпадения, затем токены текста; уникальные, не больше limit.
func (d *Dictionary) ExtractKeywords(text string, limit int) []string {
	set := NewOrderedSet()
	for _, kw := range d.MatchedKeywords(text) {
		set.Add(kw)
	}
	for _, tok := range Tokens(text) {
		set.Add(tok)
	}
	return set.Head(limit)
}

var (
	hanRun   = regexp.MustCompile(`\p{Han}{2,}`)
	tokenRun = regexp.MustCompile(`\p{Han}{2,}|[\p{Latin}\d][\p{Latin}\d_-]+`)
)

// HanTokens - непрерывные последовательности иероглифов длиной от 2.
func HanTokens(text string) []string {
	return hanRun.FindAllString(text, -1)
}

// Tokens - иероглифические последовательности и латинские слова длиной от 2.
func Tokens(text string) []string {
	return tokenRun.FindAllString(text, -1)
}

// OrderedSet - множество строк с порядком первого добавления.
type OrderedSet struct {
	seen  map[string]struct{}
	items []string
}

func NewOrderedSet() *OrderedSet {
	return &OrderedSet{seen: map[string]struct{}{}}
}

// Add добавляет непустую строку; возвращает false для дубликата.
func (s *OrderedSet) Add(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *OrderedSet) Len() int {
	return len(s.items)
}

func (s *OrderedSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Head - первые n элементов (n <= 0 - все).
func (s *OrderedSet) Head(n int) []string {
	items := s.Items()
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
