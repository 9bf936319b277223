package config

const (
	defaultWorkspaceRoot        = "~/.local/share/panelcast/workspace"
	defaultLogDir               = "~/.local/share/panelcast/logs"
	defaultAPIBind              = "127.0.0.1:8000"
	defaultRawDir               = "input/raw"
	defaultCharacterDir         = "input/character"
	defaultVoiceBankDir         = "input/voice_bank"
	defaultRenamedDir           = "output/renamed"
	defaultColorizedDir         = "output/colorized"
	defaultJSONDir              = "output/json"
	defaultTranscriptDir        = "output/transcript"
	defaultTranscriptFile       = "transcript.txt"
	defaultAudioDir             = "output/audio"
	defaultFinalDir             = "output/output_final"
	defaultArtifactName         = "video_Padding_True_audio.mp4"
	defaultToolsDir             = "~/.local/share/panelcast/tools"
	defaultPython               = "python3"
	defaultFFmpeg               = "ffmpeg"
	defaultFFprobe              = "ffprobe"
	defaultExtractScript        = "magi_functional/magiv2.py"
	defaultColorizeScript       = "manga-colorization-v2-custom/inference_v2.py"
	defaultNarrateScript        = "magi_functional/text_to_speech.py"
	defaultAssembleScript       = "magi_functional/main.py"
	defaultColorizerGenerator   = "manga-colorization-v2-custom/networks/generator.zip"
	defaultColorizerDenoiser    = "manga-colorization-v2-custom/denoising/models/net_rgb.pth"
	defaultNarratorVoice        = "male_character"
	defaultReencodeEngine       = "ffmpeg"
	defaultMaxStderrBytes       = 16 * 1024
	defaultGenerateWaitSeconds  = 600
	defaultKillGraceSeconds     = 10
	defaultServiceURL           = "http://127.0.0.1:8000"
	defaultRetryIntervalSeconds = 5
	defaultDeadlineSeconds      = 600
	defaultRequestTimeout       = 30
	defaultLongPollSeconds      = 30
	defaultNtfyRequestTimeout   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: defaultWorkspaceRoot,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
		},
		Workspace: Workspace{
			RawDir:         defaultRawDir,
			CharacterDir:   defaultCharacterDir,
			VoiceBankDir:   defaultVoiceBankDir,
			RenamedDir:     defaultRenamedDir,
			ColorizedDir:   defaultColorizedDir,
			JSONDir:        defaultJSONDir,
			TranscriptDir:  defaultTranscriptDir,
			TranscriptFile: defaultTranscriptFile,
			AudioDir:       defaultAudioDir,
			FinalDir:       defaultFinalDir,
			ArtifactName:   defaultArtifactName,
		},
		Tools: Tools{
			BaseDir:            defaultToolsDir,
			Python:             defaultPython,
			FFmpeg:             defaultFFmpeg,
			FFprobe:            defaultFFprobe,
			ExtractScript:      defaultExtractScript,
			ColorizeScript:     defaultColorizeScript,
			NarrateScript:      defaultNarrateScript,
			AssembleScript:     defaultAssembleScript,
			ColorizerGenerator: defaultColorizerGenerator,
			ColorizerDenoiser:  defaultColorizerDenoiser,
			UseGPU:             true,
			NarratorVoice:      defaultNarratorVoice,
		},
		Reencode: Reencode{
			Engine: defaultReencodeEngine,
			Verify: true,
		},
		Service: Service{
			MaxStderrBytes:      defaultMaxStderrBytes,
			GenerateWaitSeconds: defaultGenerateWaitSeconds,
			KillGraceSeconds:    defaultKillGraceSeconds,
		},
		Poller: Poller{
			ServiceURL:            defaultServiceURL,
			RetryIntervalSeconds:  defaultRetryIntervalSeconds,
			DeadlineSeconds:       defaultDeadlineSeconds,
			RequestTimeoutSeconds: defaultRequestTimeout,
			LongPollSeconds:       defaultLongPollSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			JobStarted:     false,
			JobCompleted:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
