package biz

import "strings"

// Location 地区映射
type Location struct {
	Name string
	Code int
	GL   string
}

// Language 语言映射
type Language struct {
	Name string
	Code string
}

var (
	defaultLocation = Location{Name: "United States", Code: 2840, GL: "us"}
	defaultLanguage = Language{Name: "English", Code: "en"}
)

var locations = []Location{
	defaultLocation,
	{Name: "United Kingdom", Code: 2826, GL: "gb"},
	{Name: "Canada", Code: 2124, GL: "ca"},
	{Name: "Australia", Code: 2036, GL: "au"},
	{Name: "Ireland", Code: 2372, GL: "ie"},
	{Name: "New Zealand", Code: 2554, GL: "nz"},
	{Name: "India", Code: 2356, GL: "in"},
	{Name: "Germany", Code: 2276, GL: "de"},
	{Name: "France", Code: 2250, GL: "fr"},
	{Name: "Spain", Code: 2724, GL: "es"},
	{Name: "Italy", Code: 2380, GL: "it"},
	{Name: "Netherlands", Code: 2528, GL: "nl"},
	{Name: "Brazil", Code: 2076, GL: "br"},
	{Name: "Mexico", Code: 2484, GL: "mx"},
	{Name: "Japan", Code: 2392, GL: "jp"},
	{Name: "South Korea", Code: 2410, GL: "kr"},
	{Name: "Singapore", Code: 2702, GL: "sg"},
	{Name: "South Africa", Code: 2710, GL: "za"},
}

var languages = []Language{
	defaultLanguage,
	{Name: "Spanish", Code: "es"},
	{Name: "French", Code: "fr"},
	{Name: "German", Code: "de"},
	{Name: "Italian", Code: "it"},
	{Name: "Portuguese", Code: "pt"},
	{Name: "Dutch", Code: "nl"},
	{Name: "Japanese", Code: "ja"},
	{Name: "Korean", Code: "ko"},
	{Name: "Chinese (Simplified)", Code: "zh-cn"},
	{Name: "Hindi", Code: "hi"},
	{Name: "Russian", Code: "ru"},
}

// ResolveLocation 按名称或数字代码查找地区，未知时回退到美国
func ResolveLocation(name string, code int) Location {
	name = strings.TrimSpace(name)
	for _, loc := range locations {
		if name != "" && strings.EqualFold(loc.Name, name) {
			return loc
		}
		if name == "" && code != 0 && loc.Code == code {
			return loc
		}
	}
	return defaultLocation
}

// ResolveLanguage 按名称或语言代码查找语言，未知时回退到英语
func ResolveLanguage(name, code string) Language {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	for _, lang := range languages {
		if name != "" && strings.EqualFold(lang.Name, name) {
			return lang
		}
		if name == "" && code != "" && strings.EqualFold(lang.Code, code) {
			return lang
		}
	}
	return defaultLanguage
}
