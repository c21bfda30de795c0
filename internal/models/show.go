// internal/models/show.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TextRun 一段带样式的连续文本
type TextRun struct {
	Value string `json:"value"`
	Style string `json:"style,omitempty"`
}

// Line 幻灯片上的一行文本，由若干文本片段拼接而成
type Line struct {
	Runs []TextRun `json:"runs,omitempty"`
}

// Item 幻灯片上的一个文本条目 (文本框)
type Item struct {
	Type  string `json:"type,omitempty"`
	Lines []Line `json:"lines,omitempty"`
}

// Slide 单张幻灯片
// Children 引用同一文稿内的其他幻灯片 ID，展平时紧随其后展开
type Slide struct {
	Group    string   `json:"group,omitempty"`
	Label    string   `json:"label,omitempty"`
	Children []string `json:"children,omitempty"`
	Items    []Item   `json:"items,omitempty"`
}

// LayoutSlideRef 布局中对幻灯片的有序引用
type LayoutSlideRef struct {
	ID string `json:"id"`
}

// Layout 幻灯片的一种排列
type Layout struct {
	Name   string           `json:"name,omitempty"`
	Slides []LayoutSlideRef `json:"slides"`
}

// ShowSettings 文稿级设置
type ShowSettings struct {
	ActiveLayout string `json:"activeLayout"`
}

// ShowTimestamps 创建与修改时间
type ShowTimestamps struct {
	Created  time.Time `json:"created,omitempty"`
	Modified time.Time `json:"modified,omitempty"`
}

// Show 一个演示文稿文档
// 入站 JSON 正常携带 id；磁盘格式见 EncodeShowFile: ID 提出到外层数组，
// 正文对象经 showBody 镜像写出，不重复 id 字段
type Show struct {
	ID         string             `json:"id,omitempty"`
	Name       string             `json:"name"`
	Slides     map[string]*Slide  `json:"slides"`
	Layouts    map[string]*Layout `json:"layouts"`
	Settings   ShowSettings       `json:"settings"`
	Timestamps ShowTimestamps     `json:"timestamps,omitempty"`
}

// showBody 磁盘格式中的正文对象，与 Show 一致但不含 ID
type showBody struct {
	Name       string             `json:"name"`
	Slides     map[string]*Slide  `json:"slides"`
	Layouts    map[string]*Layout `json:"layouts"`
	Settings   ShowSettings       `json:"settings"`
	Timestamps ShowTimestamps     `json:"timestamps,omitempty"`
}

// EncodeShowFile 编码 .show 文档
// 磁盘格式是两元素 JSON 数组 [id, body]，4 空格缩进
func EncodeShowFile(show *Show) ([]byte, error) {
	if show == nil {
		return nil, fmt.Errorf("演示文稿不能为空")
	}

	body := showBody{
		Name:       show.Name,
		Slides:     show.Slides,
		Layouts:    show.Layouts,
		Settings:   show.Settings,
		Timestamps: show.Timestamps,
	}

	data, err := json.MarshalIndent([]interface{}{show.ID, body}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("编码演示文稿失败: %w", err)
	}

	return data, nil
}

// DecodeShowFile 解码 .show 文档
func DecodeShowFile(data []byte) (*Show, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析演示文稿失败: %w", err)
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("演示文稿格式错误: 期望 [id, body] 两元素数组，得到 %d 个元素", len(raw))
	}

	var id string
	if err := json.Unmarshal(raw[0], &id); err != nil {
		return nil, fmt.Errorf("解析演示文稿 ID 失败: %w", err)
	}

	var body showBody
	if err := json.Unmarshal(raw[1], &body); err != nil {
		return nil, fmt.Errorf("解析演示文稿正文失败: %w", err)
	}

	return &Show{
		ID:         id,
		Name:       body.Name,
		Slides:     body.Slides,
		Layouts:    body.Layouts,
		Settings:   body.Settings,
		Timestamps: body.Timestamps,
	}, nil
}
