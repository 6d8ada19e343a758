package rfid

import (
  "bytes"
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/rs/zerolog"
  "periph.io/x/conn/v3/gpio/gpioreg"
  "periph.io/x/conn/v3/spi"
  "periph.io/x/conn/v3/spi/spireg"
  "periph.io/x/devices/v3/mfrc522"
  "periph.io/x/devices/v3/mfrc522/commands"
  "periph.io/x/host/v3"
)

const (
  DefaultPollTimeout = 500 * time.Millisecond

  // text is stored in the first three blocks of sector 2.
  textSector = 2
  textBlocks = 3
)

type MFRC522Options struct {
  // SPI port name, empty for the first available one.
  SPIPort string
  ResetPin string
  IRQPin string
  PollTimeout time.Duration
  Logger zerolog.Logger
}

type mfrc522Reader struct {
  port spi.PortCloser
  dev *mfrc522.Dev
  pollTimeout time.Duration
  logger zerolog.Logger
}

// MFRC522Opener returns an Opener for an MFRC522 reader wired to the SPI bus.
func MFRC522Opener(opts MFRC522Options) Opener {
  return func() (Reader, error) {
    return OpenMFRC522(opts)
  }
}

func OpenMFRC522(opts MFRC522Options) (Reader, error) {
  if _, err := host.Init(); err != nil {
    return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
  }

  reset := gpioreg.ByName(opts.ResetPin)
  if reset == nil {
    return nil, fmt.Errorf("unknown reset pin %q", opts.ResetPin)
  }

  irq := gpioreg.ByName(opts.IRQPin)
  if irq == nil {
    return nil, fmt.Errorf("unknown IRQ pin %q", opts.IRQPin)
  }

  port, err := spireg.Open(opts.SPIPort)
  if err != nil {
    return nil, fmt.Errorf("failed to open SPI port %q: %w", opts.SPIPort, err)
  }

  dev, err := mfrc522.NewSPI(port, reset, irq)
  if err != nil {
    port.Close()
    return nil, fmt.Errorf("failed to initialize MFRC522: %w", err)
  }

  pollTimeout := opts.PollTimeout
  if pollTimeout <= 0 {
    pollTimeout = DefaultPollTimeout
  }

  opts.Logger.Debug().
    Str("SPIPort", opts.SPIPort).
    Str("ResetPin", opts.ResetPin).
    Str("IRQPin", opts.IRQPin).
    Msg("Initialized MFRC522 reader")

  return &mfrc522Reader{
    port: port,
    dev: dev,
    pollTimeout: pollTimeout,
    logger: opts.Logger,
  }, nil
}

func (r *mfrc522Reader) Read(ctx context.Context) (Tag, error) {
  for {
    if err := ctx.Err(); err != nil {
      return Tag{}, err
    }

    uid, err := r.dev.ReadUID(r.pollTimeout)

    if err != nil {
      // no card in the field yet.
      r.logger.Trace().Err(err).Msg("mfrc522: no tag")
      continue
    }

    var text bytes.Buffer

    for block := 0; block < textBlocks; block += 1 {
      data, err := r.dev.ReadCard(r.pollTimeout, commands.PICC_AUTHENT1A, textSector, block, mfrc522.DefaultKey)

      if err != nil {
        return Tag{ID: uidToID(uid)}, fmt.Errorf("failed to read block %d of tag: %w", block, err)
      }

      text.Write(data)
    }

    return Tag{
      ID: uidToID(uid),
      Text: strings.TrimRight(text.String(), "\x00 "),
    }, nil
  }
}

func (r *mfrc522Reader) Close() error {
  haltErr := r.dev.Halt()

  if err := r.port.Close(); err != nil {
    return err
  }

  return haltErr
}

// uidToID packs the UID bytes, most significant first.
func uidToID(uid []byte) (id uint64) {
  if len(uid) > 8 {
    uid = uid[:8]
  }

  for _, b := range uid {
    id = id << 8 | uint64(b)
  }

  return id
}
