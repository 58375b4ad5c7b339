package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
	}
}

// Intent is one tool call the assistant decided on for a chat message.
type Intent struct {
	Tool        string            `json:"tool"`
	Arguments   map[string]string `json:"arguments"`
	Reply       string            `json:"reply"`
	RawResponse string            `json:"-"`
}

// Message represents a chat message for multi-turn conversations
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolNone means the message needs no schedule operation; Reply carries the answer.
const ToolNone = "none"

const systemPromptTemplate = `你是 DeskPal 桌面助手，负责把用户的自然语言请求转换为一次日程工具调用。

当前时间: %s

可用的 tool:
- add_schedule: 添加日程提醒。arguments: time, task, repeat (once/daily/weekly/monthly/yearly，可选), notify (true/false，可选)
- update_schedule: 修改已有日程。arguments: old_task, old_time, new_task, new_time
- delete_schedule: 删除日程。arguments: task, time
- delete_all_schedules: 删除所有日程
- find_schedule: 查找日程。arguments: task_keyword, time (精确时间，可选)
- list_schedule: 列出日程。arguments: day (YYYY-MM-DD，可选), future (true/false，可选), history (true/false，可选)
- get_current_time: 获取当前时间
- none: 不需要调用工具（闲聊或信息不足）

重要规则：
1. time 必须是以下格式之一：完整日期时间 'YYYY-MM-DD HH:MM:SS'；仅时间 'HH:MM:SS'（表示今天，已过则为明天）；相对时间（如 '30秒后'、'10分钟后'、'1小时后'）。
2. 用户说"明天"、"下周一"等时，请根据当前时间换算成完整日期时间。
3. 用户要求微信或 Telegram 通知时，设置 notify = "true"。
4. 用户说"每天"、"每周"、"每月"、"每年"时，设置 repeat。
5. 信息不足时使用 none，并在 reply 中追问。
6. reply 是给用户的简短友好回复；工具执行结果会附在其后。`

func (c *Client) systemPrompt() string {
	return fmt.Sprintf(systemPromptTemplate, c.now().Format("2006-01-02 15:04:05 (Monday)"))
}

// JSON Schema for structured output
var intentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"tool": {
			"type": "string",
			"enum": ["add_schedule", "update_schedule", "delete_schedule", "delete_all_schedules", "find_schedule", "list_schedule", "get_current_time", "none"],
			"description": "The tool to call"
		},
		"arguments": {
			"type": "object",
			"additionalProperties": {
				"type": "string"
			},
			"description": "String arguments for the tool"
		},
		"reply": {
			"type": "string",
			"description": "Short friendly message to show the user"
		}
	},
	"required": ["tool", "arguments", "reply"],
	"additionalProperties": false
}`)

// ParseIntent maps a conversation to a single tool call.
func (c *Client) ParseIntent(ctx context.Context, history []Message) (*Intent, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt(),
		},
	}
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "intent",
				Schema: intentSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	return parseIntent(resp.Choices[0].Message.Content)
}

func parseIntent(content string) (*Intent, error) {
	intent := &Intent{RawResponse: content}
	body := stripThinking(content)
	// Some models wrap JSON in a code fence despite the response format.
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), intent); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if intent.Tool == "" {
		intent.Tool = ToolNone
	}
	if intent.Arguments == nil {
		intent.Arguments = map[string]string{}
	}
	return intent, nil
}

const polishSystemPrompt = "你是一位专业的秘书。"

// Polish rewrites a reminder prompt into a sentence to show and speak.
func (c *Client) Polish(ctx context.Context, prompt string) (string, error) {
	return c.GenerateResponse(ctx, polishSystemPrompt, prompt)
}

func (c *Client) GenerateResponse(ctx context.Context, systemMsg, userMsg string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemMsg,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMsg,
			},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from AI")
	}

	return strings.TrimSpace(stripThinking(resp.Choices[0].Message.Content)), nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinking drops reasoning blocks emitted by thinking models.
func stripThinking(s string) string {
	return thinkBlock.ReplaceAllString(s, "")
}
