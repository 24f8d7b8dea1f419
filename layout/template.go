package layout

import "time"

// DefaultTemplate 是内置的证书模板：背景图、可选 logo、强调色边框以及五个文本块。
// 文本框位置均为相对背景图的百分比。
const DefaultTemplate = `doc Certificate v1 {
  meta {
    title: "${brand} Customer Recognition"
    author: "${brand}"
    subject: "Customer Satisfaction Survey"
    keywords: [ "certificate", "recognition" ]
  }

  resources {
    font Title { src: "system:DejaVuSans-Bold.ttf" fallback: "embed:go-bold" }
    font Body { src: "system:DejaVuSans.ttf" fallback: "embed:go-regular" }
    color Accent = #D32F2F
    color Ink = #000000
    style Header {
      font: Title
      size: 44px
      color: Ink
    }
    style Body {
      font: Body
      size: 28px
      color: Ink
    }
    style Small {
      font: Body
      size: 22px
      color: Ink
    }
  }

  canvas background "built-in:background" {
    border color Accent width 6px
    logo src "built-in:logo" x 5% y 4% w 20% h 10%
    text Header x 28% y 6% w 60% h 10% { "${header}" }
    text Body x 8% y 22% w 84% h 12% { "${subheader}" }
    text Body x 8% y 40% w 84% h 30% { "${comment}" }
    text Small x 8% y 72% w 60% h 12% newlines keep { "Visit Date:  ${visitDate}\nSurvey Date: ${surveyDate}\n${idLabel}: ${idValue}" }
    text Body x 8% y 85% w 84% h 10% placeholders data { "${footer}" }
  }
}
`

// DefaultData 返回默认模板使用的字段及其默认值，日期取 now（DD/MM/YYYY）。
func DefaultData(now time.Time) map[string]any {
	today := now.Format("02/01/2006")
	return map[string]any{
		"brand":      "Shell",
		"header":     "CONGRATULATIONS!",
		"subheader":  "You have provided outstanding customer service and a customer has shared the details via our Customer Satisfaction Survey.",
		"comment":    "“The staff were extremely helpful, especially Faye! They happily helped me pick out the things I was looking for, thank you!!”",
		"visitDate":  today,
		"surveyDate": today,
		"idLabel":    "Restaurant ID",
		"idValue":    "12345",
		"footer":     "Congratulations from {brand} for providing outstanding customer service. Please share this with your team to celebrate!",
	}
}

// MergeData 以 defaults 为底，用 overrides 的顶层字段覆盖，返回新的 map。
func MergeData(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
