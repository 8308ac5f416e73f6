package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

const maxDocumentRunes = 1500

func buildIntentPrompt(text string) string {
	return `你是体育用品电商客服系统的意图分类器。
判断用户问题属于哪一类：
0 = 通用知识（寒暄、常识、与具体商品无关的问题）
1 = 专业性咨询（商品参数、选购建议、尺码、材质、使用与保养等需要查阅商品资料的问题）
只返回严格的 JSON 对象：{"label": 0 或 1, "confidence": 0 到 1 之间的小数}，不要输出其他内容。

用户问题：
` + text
}

func buildGeneralPrompt(query string) string {
	return fmt.Sprintf(`你是一家体育用品商城的智能客服。请用简洁、友好的中文回答用户的问题。
如果问题涉及具体商品参数而你不确定，请建议用户联系人工客服。

用户问题：
%s
`, query)
}

func buildNoContextPrompt(query string) string {
	return fmt.Sprintf(`你是一家体育用品商城的智能客服。商品资料库中没有检索到与该问题相关的文档。
请基于通用的体育用品知识谨慎回答，并说明答案未经商品资料核实。

用户问题：
%s
`, query)
}

func buildAnswerPrompt(query string, documents []domain.RetrievedDocument) string {
	var contextBuilder strings.Builder
	for idx, doc := range documents {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] 标题=%s 分类=%s 相关度=%.3f\n%s\n\n",
			idx+1,
			doc.Title,
			doc.Category,
			doc.CombinedScore,
			truncateRunes(doc.Content, maxDocumentRunes),
		))
	}

	return fmt.Sprintf(`你是一家体育用品商城的专业客服。请仅根据下面的商品资料回答用户问题。
如果资料不足以回答，请直接说明，并建议联系人工客服。

用户问题：
%s

商品资料：
%s
`, query, contextBuilder.String())
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
