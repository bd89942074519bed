package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/emoaid/backend/internal/app"
	"github.com/zhouzirui/emoaid/backend/internal/config"
	chatService "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/turn"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	personaID := flag.String("persona", "therapist", "人设 ID 或名称")
	language := flag.String("lang", "", "回复语言 (名称或代码)，默认使用配置中的语言")
	voice := flag.Bool("voice", false, "是否为回复合成语音")
	text := flag.String("text", "", "单轮输入文本；留空且未提供 -audio 时从标准输入逐行读取")
	audioPath := flag.String("audio", "", "语音输入文件路径 (WAV/MP3 等)")
	sampleRate := flag.Int("rate", 0, "原始音频采样率提示")
	outDir := flag.String("out", ".", "合成语音的输出目录")
	timeout := flag.Duration("timeout", 2*time.Minute, "单轮超时时间")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	ctx := context.Background()
	services, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("服务初始化失败: %v", err)
	}

	who, ok := services.Personas.FindByID(*personaID)
	if !ok {
		log.Fatalf("未知人设: %s", *personaID)
	}

	session, err := services.Chat.CreateSession(ctx, chatService.Options{
		PersonaID:    who.ID,
		Language:     *language,
		VoiceEnabled: *voice,
	})
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}
	log.Printf("会话已创建: id=%s persona=%s language=%s voice=%t", session.ID, who.Name, session.Language, session.VoiceEnabled)

	runTurn := func(in turn.Input) {
		turnCtx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()

		in.OnState = func(s turn.State) { log.Printf("[turn] state=%s", s) }
		res, err := services.Turns.Run(turnCtx, session.ID, in)
		if err != nil {
			if res != nil && res.Warning != "" {
				fmt.Println(res.Warning)
				return
			}
			log.Printf("本轮失败: %v", err)
			return
		}

		fmt.Printf("You: %s\n", res.Input.Text)
		if res.Assistant != nil {
			fmt.Printf("%s: %s\n\n", who.Name, res.Assistant.Rendered())
		}
		if err := writeAudio(*outDir, res); err != nil {
			log.Printf("写入语音失败: %v", err)
		}
	}

	switch {
	case *audioPath != "":
		audio, err := os.ReadFile(*audioPath)
		if err != nil {
			log.Fatalf("读取音频文件失败: %v", err)
		}
		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(*audioPath)), ".")
		runTurn(turn.Input{Text: *text, Audio: audio, AudioFormat: format, SampleRateHint: *sampleRate})
	case strings.TrimSpace(*text) != "":
		runTurn(turn.Input{Text: *text})
	default:
		fmt.Println("输入消息后回车发送，Ctrl-D 结束。")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			runTurn(turn.Input{Text: line})
		}
		if err := scanner.Err(); err != nil {
			log.Printf("读取标准输入失败: %v", err)
		}
	}

	printTranscript(ctx, services, session.ID)
}

func writeAudio(dir string, res *turn.Result) error {
	if res.Output.AudioError != "" {
		log.Printf("语音合成失败: %s", res.Output.AudioError)
		return nil
	}
	if len(res.Output.Audio) == 0 || res.Assistant == nil {
		return nil
	}
	path := filepath.Join(dir, fmt.Sprintf("reply-%s.%s", res.Assistant.ID, res.Output.AudioFormat))
	if err := os.WriteFile(path, res.Output.Audio, 0o644); err != nil {
		return err
	}
	log.Printf("语音已写入 %s (%d bytes)", path, len(res.Output.Audio))
	return nil
}

func printTranscript(ctx context.Context, services *app.App, sessionID string) {
	messages, err := services.Chat.LoadTranscript(ctx, sessionID)
	if err != nil {
		log.Printf("读取对话记录失败: %v", err)
		return
	}
	fmt.Printf("--- transcript (%d messages) ---\n", len(messages))
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.Kitchen), m.Sender, m.Rendered())
	}
}
