// internal/services/flatten_service.go
package services

import (
	"strings"

	"github.com/Corphon/SlideForgeMCP/internal/models"
)

// FlattenService 把演示文稿的布局/幻灯片图展平为纯文本
type FlattenService struct{}

// NewFlattenService 创建展平服务
func NewFlattenService() *FlattenService {
	return &FlattenService{}
}

// FlattenShow 展平演示文稿为纯文本
// 纯函数: 输出只取决于文稿内容，遍历顺序始终由布局的有序引用驱动，
// 不迭代 slide 映射本身，因此结果是确定性的
func (s *FlattenService) FlattenShow(show *models.Show) string {
	if show == nil {
		return ""
	}

	layout, ok := show.Layouts[show.Settings.ActiveLayout]
	if !ok || layout == nil {
		// 活动布局缺失时产出空文本
		return ""
	}

	ordered := s.orderedSlides(show, layout)

	var text strings.Builder
	for _, slide := range ordered {
		s.writeSlide(&text, slide)
	}

	return strings.TrimSpace(collapseBlankLines(text.String()))
}

// orderedSlides 按布局顺序展开幻灯片，子幻灯片紧随父幻灯片之后
// 悬空引用（布局引用或子引用）一律跳过，不视为错误
func (s *FlattenService) orderedSlides(show *models.Show, layout *models.Layout) []*models.Slide {
	ordered := make([]*models.Slide, 0, len(layout.Slides))

	for _, ref := range layout.Slides {
		slide, ok := show.Slides[ref.ID]
		if !ok || slide == nil {
			continue
		}
		ordered = append(ordered, slide)

		for _, childID := range slide.Children {
			child, ok := show.Slides[childID]
			if !ok || child == nil {
				continue
			}
			ordered = append(ordered, child)
		}
	}

	return ordered
}

// writeSlide 写出单张幻灯片的文本块
func (s *FlattenService) writeSlide(text *strings.Builder, slide *models.Slide) {
	if slide.Group != "" {
		text.WriteString("[" + slide.Group + "]\n")
	}

	for _, item := range slide.Items {
		for _, line := range item.Lines {
			// 没有文本片段的行整行跳过
			if len(line.Runs) == 0 {
				continue
			}
			for _, run := range line.Runs {
				text.WriteString(run.Value)
			}
			text.WriteString("\n")
		}
		// 条目之间以空行分隔，即使条目没有贡献任何文本
		text.WriteString("\n")
	}

	// 组标签后没有任何正文时补一个空行，避免与下一张幻灯片粘连
	if strings.HasSuffix(text.String(), "]\n") {
		text.WriteString("\n")
	}
}

// collapseBlankLines 把连续三个换行折叠为两个，重复应用直到不动点
// 幂等: 对已折叠的文本再次调用不会改变结果
func collapseBlankLines(text string) string {
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}
